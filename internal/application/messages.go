package application

import (
	"fmt"
	"time"

	"github.com/caregrid/dispatch-service/internal/domain"
)

// The engine formats its own message bodies; the transport only carries them.

func (s *Service) offerMessage(assignment domain.Assignment, client domain.Client, now time.Time) string {
	urgency := ""
	if assignment.StartAt.Sub(now) <= s.cfg.UrgentWindow {
		urgency = "URGENT: "
	}
	return fmt.Sprintf(
		"%sOpen shift %s %s-%s with %s in %s. Reply YES to take it or NO to pass.",
		urgency,
		assignment.StartAt.Format("Mon Jan 2"),
		assignment.StartAt.Format("3:04PM"),
		assignment.EndAt.Format("3:04PM"),
		client.FirstName,
		client.City,
	)
}

func (s *Service) clarifyMessage(assignment domain.Assignment, client domain.Client) string {
	return fmt.Sprintf(
		"Just to confirm: the shift is %s %s-%s with %s in %s. Can you take it? Please reply YES or NO.",
		assignment.StartAt.Format("Mon Jan 2"),
		assignment.StartAt.Format("3:04PM"),
		assignment.EndAt.Format("3:04PM"),
		client.FirstName,
		client.City,
	)
}

func (s *Service) confirmationMessage(assignment domain.Assignment, client domain.Client) string {
	return fmt.Sprintf(
		"You're confirmed for %s %s-%s with %s in %s. Thank you!",
		assignment.StartAt.Format("Mon Jan 2"),
		assignment.StartAt.Format("3:04PM"),
		assignment.EndAt.Format("3:04PM"),
		client.FirstName,
		client.City,
	)
}

func (s *Service) filledMessage(assignment domain.Assignment) string {
	return fmt.Sprintf(
		"The %s shift has been filled by someone else. Thanks for replying - we'll reach out about future openings.",
		assignment.StartAt.Format("Mon Jan 2"),
	)
}
