package watch

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/porter-gw/porter/internal/events"
)

type eventMsg events.Event

type healthMsg struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	PluginsLoaded int    `json:"plugins_loaded"`
}

type tickMsg time.Time

type errMsg error

type disconnectedMsg struct{}
type reconnectMsg struct{}

// subscribeToEvents tails the SSE /api/events endpoint into ch. It
// returns disconnectedMsg when the stream drops so the model can
// schedule a reconnect.
func subscribeToEvents(apiURL, apiKey string, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		req, err := http.NewRequest(http.MethodGet, apiURL+"/api/events", nil)
		if err != nil {
			return errMsg(err)
		}
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return disconnectedMsg{}
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		var cur events.Event
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				if len(cur.Payload) > 0 {
					cur.At = time.Now()
					ch <- cur
					cur = events.Event{}
				}
				continue
			}
			switch {
			case strings.HasPrefix(line, "id: "):
				if seq, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
					cur.Seq = seq
				}
			case strings.HasPrefix(line, "event: "):
				cur.Kind = line[7:]
			case strings.HasPrefix(line, "data: "):
				cur.Payload = json.RawMessage(line[6:])
			}
		}
		return disconnectedMsg{}
	}
}

// receiveNextEvent waits for the next event from the channel.
func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

// fetchHealth queries /healthz.
func fetchHealth(apiURL string) tea.Msg {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(apiURL + "/healthz")
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var h healthMsg
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return errMsg(err)
	}
	return h
}
