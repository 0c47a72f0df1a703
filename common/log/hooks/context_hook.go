package hooks

import (
	"runtime/debug"
	"strings"

	log "github.com/sirupsen/logrus"
)

// contextHook tags every entry with the file:line of the logging call site,
// trimmed to the path inside this repository.
type contextHook struct {
}

func NewContextHook() contextHook {
	return contextHook{}
}

func (hook contextHook) Levels() []log.Level {
	return log.AllLevels
}

func (hook contextHook) Fire(entry *log.Entry) error {
	if site := callSite(string(debug.Stack())); site != "" {
		entry.Data["file:line"] = site
	}
	return nil
}

// callSite walks a goroutine stack dump and returns the first frame below the
// logrus machinery. Frames come in pairs (function, file:line) so once the
// hook's own frame is found we only look at file lines.
func callSite(stack string) string {
	lines := strings.Split(stack, "\n")
	foundHook := false
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if strings.Contains(line, "context_hook.go:") {
			foundHook = true
			continue
		}
		if !foundHook || !strings.HasPrefix(line, "/") {
			continue
		}
		if strings.Contains(line, "sirupsen/logrus") {
			continue
		}
		ctx := strings.Split(line, "cosched/")
		site := ctx[len(ctx)-1]
		if idx := strings.LastIndex(site, " +0x"); idx >= 0 {
			site = site[:idx]
		}
		return site
	}
	return ""
}
