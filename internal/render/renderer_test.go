package render

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lunabot/internal/catalog"
	"lunabot/internal/domain"
)

type sentItem struct {
	kind string // "text" or "image"
	body string
}

type fakePlatform struct {
	mu       sync.Mutex
	sent     []sentItem
	failText map[string]bool
	failAll  bool
}

func (f *fakePlatform) SendText(_ context.Context, _ string, text string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll || f.failText[text] {
		return errors.New("platform down")
	}
	f.sent = append(f.sent, sentItem{"text", text})
	return nil
}

func (f *fakePlatform) SendImage(_ context.Context, _ string, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.New("platform down")
	}
	f.sent = append(f.sent, sentItem{"image", url})
	return nil
}

func (f *fakePlatform) ShowComposing(context.Context, string) error { return nil }

func (f *fakePlatform) items() []sentItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentItem(nil), f.sent...)
}

type recordingLoyalty struct {
	mu    sync.Mutex
	chats []string
}

func (r *recordingLoyalty) StartLoyalty(chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats = append(r.chats, chatID)
}

func newTestRenderer(p *fakePlatform, chunkLen int) *Renderer {
	return NewRenderer(RendererConfig{
		Platform: p,
		Cards:    testCards,
		ChunkLen: chunkLen,
		Logger:   testLogger(),
	})
}

func TestRender_TextWithDirective(t *testing.T) {
	p := &fakePlatform{}
	r := newTestRenderer(p, 0)

	r.Render(context.Background(), "42", []domain.OutputEvent{
		{Type: domain.EventText, Message: "Hola [IMAGE: EL LOCO] mundo"},
	})

	assert.Equal(t, []sentItem{
		{"text", "Hola"},
		{"image", "https://img.example/loco.jpg"},
		{"text", "mundo"},
	}, p.items())
}

func TestRender_SpeakTreatedAsText(t *testing.T) {
	p := &fakePlatform{}
	r := newTestRenderer(p, 0)

	r.Render(context.Background(), "42", []domain.OutputEvent{
		{Type: domain.EventSpeak, Message: "te escucho"},
	})

	assert.Equal(t, []sentItem{{"text", "te escucho"}}, p.items())
}

func TestRender_LongTextIsChunked(t *testing.T) {
	p := &fakePlatform{}
	r := newTestRenderer(p, 5)

	r.Render(context.Background(), "42", []domain.OutputEvent{
		{Type: domain.EventText, Message: "abcdefghijkl"},
	})

	assert.Equal(t, []sentItem{
		{"text", "abcde"},
		{"text", "fghij"},
		{"text", "kl"},
	}, p.items())
}

func TestRender_FailureDoesNotAbortPass(t *testing.T) {
	p := &fakePlatform{failText: map[string]bool{"primero": true}}
	r := newTestRenderer(p, 0)

	r.Render(context.Background(), "42", []domain.OutputEvent{
		{Type: domain.EventText, Message: "primero"},
		{Type: domain.EventText, Message: "segundo"},
		{Type: domain.EventVisual, ImageURL: "https://img.example/x.png"},
	})

	assert.Equal(t, []sentItem{
		{"text", "segundo"},
		{"image", "https://img.example/x.png"},
	}, p.items())
}

func TestRender_EndAndUnknownProduceNothing(t *testing.T) {
	p := &fakePlatform{}
	r := newTestRenderer(p, 0)

	r.Render(context.Background(), "42", []domain.OutputEvent{
		{Type: domain.EventEnd},
		{Type: domain.EventOther, Raw: "choice"},
		{Type: domain.EventVisual},
	})

	assert.Empty(t, p.items())
}

func TestRender_EmptyAndWhitespaceSegmentsSkipped(t *testing.T) {
	p := &fakePlatform{}
	r := newTestRenderer(p, 0)

	r.Render(context.Background(), "42", []domain.OutputEvent{
		{Type: domain.EventText, Message: ""},
		{Type: domain.EventText, Message: "  [IMAGE: LA LUNA]  "},
	})

	assert.Equal(t, []sentItem{{"image", "https://img.example/luna.jpg"}}, p.items())
}

func TestRenderText_LoyaltyTokenStripped(t *testing.T) {
	p := &fakePlatform{}
	loyal := &recordingLoyalty{}
	r := newTestRenderer(p, 0)
	r.SetLoyalty(loyal)

	r.RenderText(context.Background(), "7", "Gracias por tu confianza [lealtad_completa] 🌙")

	items := p.items()
	require.Len(t, items, 1)
	assert.NotContains(t, strings.ToUpper(items[0].body), "LEALTAD_COMPLETA")
	assert.Equal(t, []string{"7"}, loyal.chats)
}

func TestRenderText_LoyaltyWithoutStarter(t *testing.T) {
	p := &fakePlatform{}
	r := newTestRenderer(p, 0)

	r.RenderText(context.Background(), "7", "[LEALTAD_COMPLETA]")

	assert.Empty(t, p.items())
}

func TestRender_AllFailuresStillReturn(t *testing.T) {
	p := &fakePlatform{failAll: true}
	r := newTestRenderer(p, 0)

	r.Render(context.Background(), "42", []domain.OutputEvent{
		{Type: domain.EventText, Message: "a [IMAGE: EL MUNDO] b"},
	})

	assert.Empty(t, p.items())
}

func TestNewRenderer_DefaultsToBuiltInCatalog(t *testing.T) {
	p := &fakePlatform{}
	r := NewRenderer(RendererConfig{Platform: p, Logger: testLogger()})

	require.NotPanics(t, func() {
		r.RenderText(context.Background(), "1", "hola [IMAGE: EL LOCO]")
	})

	url, ok := catalog.Default().Lookup("EL LOCO")
	require.True(t, ok)
	assert.Equal(t, []sentItem{{"text", "hola"}, {"image", url}}, p.items())
}
