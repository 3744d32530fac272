package suppliers

import (
	"strings"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
)

func (s *Service) validate(sp *Supplier) error {
	sp.Code = strings.ToUpper(strings.TrimSpace(sp.Code))
	sp.Name = strings.TrimSpace(sp.Name)
	sp.Contact = strings.TrimSpace(sp.Contact)
	sp.Phone = strings.TrimSpace(sp.Phone)
	sp.Email = strings.ToLower(strings.TrimSpace(sp.Email))
	sp.Address = strings.TrimSpace(sp.Address)
	return httpx.Validate(*sp)
}
