package conversation

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mamadbah2/relaybot/internal/domain/models"
)

const menuRowSize = 3

// Phrasebook holds the user-facing wording for one language and target kind.
type Phrasebook struct {
	IdentityPrompt string
	IdentityButton string
	NotAuthorized  string
	CommandSent    string
	CommandNotSent string

	selectFormat      string
	notFoundFormat    string
	rateLimitedFormat string
	kind              string
	tag               language.Tag
}

// NewPhrasebook returns the wording for lang ("ru" or "en"; anything else falls back to
// "ru") with kind as the target noun, e.g. "этаж" or "gate".
func NewPhrasebook(lang, kind string) Phrasebook {
	if lang == "en" {
		if kind == "" {
			kind = "floor"
		}
		return Phrasebook{
			IdentityPrompt:    "Share your phone number to sign in",
			IdentityButton:    "Sign in",
			NotAuthorized:     "You are not registered in the system",
			CommandSent:       "Command sent",
			CommandNotSent:    "Command not sent",
			selectFormat:      "Choose a %s",
			notFoundFormat:    "%s not found",
			rateLimitedFormat: "Too frequent, wait %d seconds",
			kind:              kind,
			tag:               language.English,
		}
	}

	if kind == "" {
		kind = "этаж"
	}
	return Phrasebook{
		IdentityPrompt:    "Отправьте номер вашего телефона для авторизации",
		IdentityButton:    "Авторизация",
		NotAuthorized:     "Вы не подключены к системе",
		CommandSent:       "Команда отправлена",
		CommandNotSent:    "Команда не отправлена",
		selectFormat:      "Выберите %s",
		notFoundFormat:    "%s не найден",
		rateLimitedFormat: "Слишком часто, ждите %d секунд",
		kind:              kind,
		tag:               language.Russian,
	}
}

// SelectPrompt is the text shown above the target menu.
func (p Phrasebook) SelectPrompt() string {
	return fmt.Sprintf(p.selectFormat, p.kind)
}

// Kind is the target noun used in prompts.
func (p Phrasebook) Kind() string {
	return p.kind
}

// NotFound is the reply for an unknown target label.
func (p Phrasebook) NotFound() string {
	return fmt.Sprintf(p.notFoundFormat, upperFirst(p.kind, p.tag))
}

// upperFirst upper-cases only the first rune of s, leaving the rest untouched.
func upperFirst(s string, tag language.Tag) string {
	_, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return cases.Upper(tag).String(s[:size]) + s[size:]
}

// RateLimited is the reply for a throttled command.
func (p Phrasebook) RateLimited(waitSeconds int64) string {
	return fmt.Sprintf(p.rateLimitedFormat, waitSeconds)
}

// Outcome renders a decoded backend reply.
func (p Phrasebook) Outcome(o models.Outcome) string {
	switch o.Kind {
	case models.OutcomeSent:
		return p.CommandSent
	case models.OutcomeRateLimited:
		return p.RateLimited(o.WaitSeconds)
	default:
		return p.CommandNotSent
	}
}

func identityKeyboard(p Phrasebook) *models.Keyboard {
	return &models.Keyboard{
		Rows: [][]models.Button{{{Text: p.IdentityButton, RequestContact: true}}},
	}
}

func targetKeyboard(labels []string) *models.Keyboard {
	rows := make([][]models.Button, 0, (len(labels)+menuRowSize-1)/menuRowSize)
	for i := 0; i < len(labels); i += menuRowSize {
		end := min(i+menuRowSize, len(labels))
		row := make([]models.Button, 0, end-i)
		for _, label := range labels[i:end] {
			row = append(row, models.Button{Text: label})
		}
		rows = append(rows, row)
	}
	return &models.Keyboard{Rows: rows}
}
