package source

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ernie/sessions-tracker/internal/domain"
)

// Engine log line patterns. One line per datagram; anything that does not
// match is skipped silently.
var (
	timestampRegex = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?Z?)\s+`)

	mapStartRegex         = regexp.MustCompile(`^MapStart: (.+)$`)
	clientAuthorizedRegex = regexp.MustCompile(`^ClientAuthorized: (\d+) (\d+) ([0-9a-fA-F:.\[\]]+) "(.*)"$`)
	clientDisconnectRegex = regexp.MustCompile(`^ClientDisconnect: (\d+)$`)
	sayRegex              = regexp.MustCompile(`^Say: (\d+) "(.*)"$`)
	sayTeamRegex          = regexp.MustCompile(`^SayTeam: (\d+) "(.*)"$`)
)

// ParseLine parses one engine log line into a tracker event.
// The boolean is false for unrecognized or malformed lines.
func ParseLine(line string) (domain.Event, bool) {
	line = strings.TrimRight(line, "\r\n")

	ts := time.Now().UTC()
	if m := timestampRegex.FindStringSubmatch(line); m != nil {
		if parsed, err := time.Parse(time.RFC3339, strings.TrimSuffix(m[1], "Z")+"Z"); err == nil {
			ts = parsed
		}
		line = line[len(m[0]):]
	}

	if m := mapStartRegex.FindStringSubmatch(line); m != nil {
		return domain.Event{
			Type:      domain.EventMapStart,
			Timestamp: ts,
			Data:      domain.MapStartData{Name: m[1]},
		}, true
	}

	if m := clientAuthorizedRegex.FindStringSubmatch(line); m != nil {
		slot, err := strconv.Atoi(m[1])
		if err != nil {
			return domain.Event{}, false
		}
		steamID, err := strconv.ParseUint(m[2], 10, 64)
		if err != nil {
			return domain.Event{}, false
		}
		return domain.Event{
			Type:      domain.EventClientAuthorized,
			Timestamp: ts,
			Data: domain.ClientAuthorizedData{
				Slot:    slot,
				SteamID: steamID,
				IP:      stripPort(m[3]),
				Name:    m[4],
			},
		}, true
	}

	if m := clientDisconnectRegex.FindStringSubmatch(line); m != nil {
		slot, err := strconv.Atoi(m[1])
		if err != nil {
			return domain.Event{}, false
		}
		return domain.Event{
			Type:      domain.EventClientDisconnect,
			Timestamp: ts,
			Data:      domain.ClientDisconnectData{Slot: slot},
		}, true
	}

	if m := sayRegex.FindStringSubmatch(line); m != nil {
		return chatEvent(ts, m[1], m[2], false)
	}
	if m := sayTeamRegex.FindStringSubmatch(line); m != nil {
		return chatEvent(ts, m[1], m[2], true)
	}

	return domain.Event{}, false
}

func chatEvent(ts time.Time, slotStr, text string, teamOnly bool) (domain.Event, bool) {
	slot, err := strconv.Atoi(slotStr)
	if err != nil {
		return domain.Event{}, false
	}
	return domain.Event{
		Type:      domain.EventChat,
		Timestamp: ts,
		Data:      domain.ChatData{Slot: slot, Text: text, TeamOnly: teamOnly},
	}, true
}

// stripPort drops a trailing :port from an address the way the engine
// reports it (1.2.3.4:27005)
func stripPort(addr string) string {
	if i := strings.LastIndex(addr, ":"); i > 0 && strings.Count(addr, ":") == 1 {
		return addr[:i]
	}
	return addr
}
