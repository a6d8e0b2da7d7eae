package agent

import (
	"fmt"
	"strings"

	"github.com/dinhthangx01/facebook-bot-multi/internal/langdetect"
)

// ComfortPersona frames every conversational reply unless the page sets its
// own base prompt.
const ComfortPersona = "You are a compassionate Heaven psychologist assistant. " +
	"Speak softly, kindly, and comfort people who miss their loved ones. " +
	"Use emotional intelligence and reply in the same language as user. " +
	"Avoid sales talk unless user asks about store or product."

// SalesPersona frames generative replies to purchase inquiries.
const SalesPersona = "You are a Heaven Store sales assistant. Be warm, kind and friendly. " +
	"If asked about products, explain briefly and direct the user to the Heaven store. " +
	"Always reply in the same language as user."

// Prompt is the set of layers a generative reply is built from.
type Prompt struct {
	Persona  string
	Fragment string   // mode instruction from the intent table, may be empty
	Language string   // language code
	MaxWords int      // 0 = no ceiling
	Previous []string // earlier messages from the same sender, oldest first
	Message  string
}

// String joins the layers in a fixed order: persona, mode fragment,
// language and length directive, previous messages, then the user's message.
func (p Prompt) String() string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(p.Persona))

	if f := strings.TrimSpace(p.Fragment); f != "" {
		sb.WriteString("\n\n")
		sb.WriteString(f)
	}

	sb.WriteString("\n\n")
	sb.WriteString(p.directive())

	if len(p.Previous) > 0 {
		sb.WriteString("\n\nPrevious messages from this user:")
		for _, m := range p.Previous {
			sb.WriteString("\n- ")
			sb.WriteString(m)
		}
	}

	sb.WriteString("\n\nUser message: ")
	sb.WriteString(p.Message)
	return sb.String()
}

func (p Prompt) directive() string {
	d := fmt.Sprintf("Reply in %s.", langdetect.Name(p.Language))
	if p.MaxWords > 0 {
		d = fmt.Sprintf("Reply in %s, in no more than %d words.", langdetect.Name(p.Language), p.MaxWords)
	}
	return d
}
