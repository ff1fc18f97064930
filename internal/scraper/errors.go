package scraper

import (
	"errors"
	"strings"

	"github.com/studyboard/program-scraper/internal/browser"
)

var (
	// ErrNoRenderBackend means no render session could be opened at all;
	// the batch cannot start.
	ErrNoRenderBackend = errors.New("no render backend available")
	// ErrNoDestinations means destination discovery found nothing usable.
	ErrNoDestinations = errors.New("no study destinations discovered")
	// ErrNoProgramRefs means the listing walk produced zero program links.
	ErrNoProgramRefs = errors.New("no program references collected")
)

// IsSessionFatal classifies an error as a dead render session (lost tab,
// lost browser connection). The orchestrator reacts by recreating the
// session; everything else is item-local.
func IsSessionFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, browser.ErrSessionClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "session closed") ||
		strings.Contains(msg, "invalid session") ||
		strings.Contains(msg, "connection lost")
}
