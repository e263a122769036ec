package agent

import "lunabot/internal/domain"

// Phrases sent to the dialogue engine in place of non-text content.
const (
	PhrasePhoto    = "te envío una foto de comprobante"
	PhraseDocument = "te envío un archivo de comprobante"
	PhraseSticker  = "sticker enviado"
	PhraseVoice    = "nota de voz enviada"
	PhraseOther    = "contenido enviado"
)

// DescribeInbound returns the text to forward for msg: its literal text
// when present, otherwise a fixed phrase for the kind of content.
func DescribeInbound(msg domain.InboundMessage) string {
	if msg.Content != "" {
		return msg.Content
	}
	switch msg.Kind {
	case domain.KindPhoto:
		return PhrasePhoto
	case domain.KindDocument:
		return PhraseDocument
	case domain.KindSticker:
		return PhraseSticker
	case domain.KindVoice, domain.KindAudio:
		return PhraseVoice
	default:
		return PhraseOther
	}
}
