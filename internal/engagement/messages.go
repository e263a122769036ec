package engagement

import (
	"fmt"

	"lunabot/internal/catalog"
)

const (
	reminderText = "🌙 Mi luz, sigo aquí para ti. Cuando quieras retomamos tu lectura, las cartas te esperan ✨"

	checkInText = "✨ Hola mi luz, ¿cómo te has sentido desde nuestra lectura? Me encantaría saber cómo fluye tu energía hoy 🌙💚"

	// cardGiftFormat embeds a card directive so the gift renders with its image.
	cardGiftFormat = "🎁 Un regalo del universo para ti: hoy tu carta guía es %s [IMAGE: %s] Guárdala en tu corazón 💫"
)

var staticGifts = []string{
	"🎁 Un pequeño regalo para ti: respira profundo tres veces y repite \"merezco todo lo bueno que llega a mi vida\" 🌙",
	"🎁 Tu regalo de hoy: enciende una vela blanca esta noche y pide claridad para tus caminos ✨",
	"🎁 Un mensaje de las estrellas para ti: lo que sembraste con amor está a punto de florecer 💚",
}

// giftPayload draws one entry uniformly from the static gifts plus the
// dynamic card gift.
func giftPayload(r catalog.Intn, cards *catalog.Catalog) string {
	n := len(staticGifts) + 1
	i := r.IntN(n)
	if i < len(staticGifts) {
		return staticGifts[i]
	}

	var name string
	if cards != nil {
		name = cards.Random(r)
	}
	if name == "" {
		return staticGifts[0]
	}
	return fmt.Sprintf(cardGiftFormat, name, name)
}
