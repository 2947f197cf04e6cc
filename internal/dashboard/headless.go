package dashboard

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// RunHeadless drains the queue without a terminal UI, on every refresh tick
// and whenever the queue signals new messages, and logs the latest values at
// most once per logEvery when something changed. It returns nil when ctx
// ends and the link error when the transport fails.
func RunHeadless(ctx context.Context, pump *Pump, refresh, logEvery time.Duration) error {
	if pump == nil || pump.Queue == nil || pump.Store == nil {
		return fmt.Errorf("dashboard pump is incomplete")
	}
	if refresh <= 0 {
		refresh = 100 * time.Millisecond
	}
	if logEvery <= 0 {
		logEvery = time.Second
	}

	t := time.NewTicker(refresh)
	defer t.Stop()

	pending := 0
	var lastLog time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		case <-pump.Queue.Ready():
		}

		n, err := pump.Drain()
		pending += n
		if err != nil {
			return err
		}
		if pending > 0 && time.Since(lastLog) >= logEvery {
			log.Printf("gpsdxo %s", summary(pump))
			lastLog = time.Now()
			pending = 0
		}
	}
}

func summary(p *Pump) string {
	var parts []string
	for _, r := range p.Store.Table() {
		if r.Value == "" {
			continue
		}
		key := strings.ReplaceAll(strings.ToLower(r.Name), " ", "_")
		parts = append(parts, key+"="+r.Value)
	}
	return strings.Join(parts, " ")
}
