package categories

import (
	"strings"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
)

func (s *Service) validate(c *Category) error {
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	c.Name = strings.TrimSpace(c.Name)
	c.Description = strings.TrimSpace(c.Description)
	return httpx.Validate(*c)
}
