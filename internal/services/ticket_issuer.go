package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"eventbooking/internal/domain"
)

const fallbackCodePrefix = "EVT"

// TicketCode builds the display code PREFIX-XXXXXXXX, where PREFIX is the first word of the
// event title.
func TicketCode(title string) string {
	prefix := fallbackCodePrefix
	if s := slug.Make(title); s != "" {
		prefix = strings.ToUpper(strings.SplitN(s, "-", 2)[0])
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return prefix + "-" + suffix
}

// issueTicket creates the one ticket a registration ever gets. The repository rejects a
// second ticket for the same registration.
func (d Deps) issueTicket(ctx context.Context, reg *domain.Registration, ev *domain.Event, at time.Time) (*domain.Ticket, error) {
	t := &domain.Ticket{
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		Tier:           reg.Tier,
		Status:         domain.TicketIssued,
		Code:           TicketCode(ev.Title),
		IssuedAt:       at,
		UpdatedAt:      at,
	}
	if err := d.Tickets.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	return t, nil
}
