package selector

import (
	"fmt"
	"strings"

	"github.com/trickstertwo/xroute/carryforward"
)

// Sender selects messages that passed through a matching service instance.
//
// Patterns are comma separated. An entry is either a bare service instance
// name, matching any application and version, or app:version.service where
// '_' in version stands for '.'. Names compare case-insensitively.
//
// A non-empty appID restricts bare entries to hops of that application.
type Sender struct {
	entries []senderEntry
	appID   string
}

type senderEntry struct {
	app     string
	version string
	service string
	bare    bool
}

// NewSender parses patterns. An empty pattern list is valid and selects
// nothing.
func NewSender(patterns, appID string) (*Sender, error) {
	s := &Sender{appID: strings.TrimSpace(appID)}
	for _, raw := range strings.Split(patterns, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		e, err := parseSenderEntry(raw)
		if err != nil {
			return nil, err
		}
		s.entries = append(s.entries, e)
	}
	return s, nil
}

func parseSenderEntry(raw string) (senderEntry, error) {
	app, rest, qualified := strings.Cut(raw, ":")
	if !qualified {
		return senderEntry{service: raw, bare: true}, nil
	}
	version, service, ok := strings.Cut(rest, ".")
	if !ok || strings.TrimSpace(app) == "" || strings.TrimSpace(service) == "" {
		return senderEntry{}, fmt.Errorf("%w: %q: want app:version.service", ErrInvalidPattern, raw)
	}
	return senderEntry{
		app:     strings.TrimSpace(app),
		version: strings.ReplaceAll(strings.TrimSpace(version), "_", "."),
		service: strings.TrimSpace(service),
	}, nil
}

// Len is the number of pattern entries.
func (s *Sender) Len() int { return len(s.entries) }

// IsSelected reports whether any hop of the carried context matches an entry.
// It never fails.
func (s *Sender) IsSelected(in Input) (bool, error) {
	if in.Context == nil || len(s.entries) == 0 {
		return false, nil
	}
	for _, hop := range in.Context.Hops() {
		for _, e := range s.entries {
			if s.match(e, hop) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Sender) match(e senderEntry, hop carryforward.SourceContext) bool {
	if !strings.EqualFold(e.service, hop.ServiceInstanceName) {
		return false
	}
	if e.bare {
		return s.appID == "" || strings.EqualFold(s.appID, hop.AppInstanceName)
	}
	return strings.EqualFold(e.app, hop.AppInstanceName) &&
		strings.EqualFold(e.version, hop.AppInstanceVersion)
}
