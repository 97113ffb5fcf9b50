package reminder_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/cobrador/internal/reminder"
)

func TestRenderer_Render(t *testing.T) {
	r := reminder.NewRenderer("")
	due := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("Overdue", func(t *testing.T) {
		msg := r.Render("after_5", "Maria Silva", decimal.RequireFromString("452.30"), due, "")

		assert.Contains(t, msg, "Maria")
		assert.NotContains(t, msg, "Silva")
		assert.Contains(t, msg, "R$ 452,30")
		assert.Contains(t, msg, "10/03/2024")
		assert.Contains(t, msg, "5 dias em atraso")
		assert.True(t, strings.HasSuffix(msg, "_"+reminder.DefaultDisclaimer+"_"))
		assert.NotContains(t, msg, "Para pagar")
	})

	t.Run("PaymentLink", func(t *testing.T) {
		msg := r.Render("before_3", "joão", decimal.NewFromInt(100), due, "https://pay.example/abc")

		assert.Contains(t, msg, "João")
		assert.Contains(t, msg, "Para pagar, acesse: https://pay.example/abc")
	})

	t.Run("UnknownStage", func(t *testing.T) {
		msg := r.Render("after_99", "", decimal.NewFromInt(10), due, "")

		assert.Contains(t, msg, "cliente")
		assert.Contains(t, msg, "R$ 10,00")
		assert.Contains(t, msg, "10/03/2024")
	})

	t.Run("CustomDisclaimer", func(t *testing.T) {
		msg := reminder.NewRenderer("Mensagem automática.").Render("due_date", "Ana", decimal.NewFromInt(1), due, "")

		assert.True(t, strings.HasSuffix(msg, "\n\n_Mensagem automática._"))
	})

	t.Run("EveryDefaultStageHasTemplate", func(t *testing.T) {
		for _, st := range reminder.DefaultSchedule().Stages() {
			msg := r.Render(st.ID, "Ana", decimal.NewFromInt(1), due, "")
			assert.NotContains(t, msg, "Há um boleto", st.ID)
		}
	})
}

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "452.30", want: "R$ 452,30"},
		{in: "1234.5", want: "R$ 1.234,50"},
		{in: "1234567.891", want: "R$ 1.234.567,89"},
		{in: "0", want: "R$ 0,00"},
		{in: "-12.5", want: "-R$ 12,50"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, reminder.FormatBRL(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestFirstName(t *testing.T) {
	assert.Equal(t, "Maria", reminder.FirstName("  MARIA da Silva "))
	assert.Equal(t, "cliente", reminder.FirstName("   "))
}
