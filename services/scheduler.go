package services

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"TajiSignBot/configuration"
	"TajiSignBot/logger"
	"TajiSignBot/models"

	"github.com/robfig/cron/v3"
)

// Reporter delivers batch results out of the current chat context.
type Reporter interface {
	SendDirect(userID, text string) error
	SendGroup(channelID, text string) error
}

// Batch runs the scheduled (or manually triggered) sign-in over every
// eligible account group and fans the results out.
type Batch struct {
	Signer   *Signer
	Bindings BindingStore
	Ledger   SignLedger
	Subs     SubscriptionStore
	Reporter Reporter

	// Jitter delays a group before its remote calls; swappable in tests.
	Jitter func()
}

type groupResult struct {
	primary models.Binding
	text    string
	ok      bool
}

type groupSummary struct {
	success  int
	failed   int
	failures []string
}

// IsSuccessText classifies one account group's result text. The substrings
// are the documented failure markers of the orchestrator's own messages.
func IsSuccessText(text string) bool {
	return !strings.Contains(text, "failed") && !strings.Contains(text, "expired")
}

func (b *Batch) jitter() {
	if b.Jitter != nil {
		b.Jitter()
		return
	}
	time.Sleep(time.Duration(rand.Float64() * float64(1500*time.Millisecond)))
}

// Run executes the batch under cfg, a snapshot taken by the caller at
// invocation start so one run never mixes two configurations. It returns the
// overall summary text.
func (b *Batch) Run(cfg configuration.Config) string {
	var (
		bindings []models.Binding
		err      error
	)
	switch {
	case cfg.Sign.SignEveryone:
		bindings, err = b.Bindings.AllWithCredential()
	case cfg.Sign.SchedEnabled:
		bindings, err = b.Bindings.AutoSignEnabled()
	default:
		return "Automatic sign-in is not enabled."
	}
	if err != nil {
		logger.Log.WithError(err).Error("Batch sign-in failed to load bindings")
		return "Automatic sign-in failed: could not load accounts."
	}

	groups := GroupByAccount(bindings)
	if len(groups) == 0 {
		return "No accounts to sign in."
	}

	maxConcurrent := cfg.Sign.MaxConcurrent
	if maxConcurrent > configuration.MaxConcurrentCap {
		maxConcurrent = configuration.MaxConcurrentCap
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	sem := make(chan struct{}, maxConcurrent)
	results := make(chan groupResult)

	// A single aggregator goroutine owns every counter and map; the group
	// workers only ever send on the channel.
	var (
		successCount int
		failCount    int
		directMsgs   = make(map[string][]string)
		directOrder  []string
		groupMsgs    = make(map[string]*groupSummary)
		groupOrder   []string
	)
	aggregatorDone := make(chan struct{})
	go func() {
		defer close(aggregatorDone)
		for r := range results {
			if r.ok {
				successCount++
			} else {
				failCount++
			}

			switch mode := r.primary.AutoSign; mode {
			case models.AutoSignOn:
				if _, seen := directMsgs[r.primary.UserID]; !seen {
					directOrder = append(directOrder, r.primary.UserID)
				}
				directMsgs[r.primary.UserID] = append(directMsgs[r.primary.UserID], r.text)
			case models.AutoSignOff, "":
				// Signed under the everyone override; nothing to deliver.
			default:
				summary, seen := groupMsgs[mode]
				if !seen {
					summary = &groupSummary{}
					groupMsgs[mode] = summary
					groupOrder = append(groupOrder, mode)
				}
				if r.ok {
					summary.success++
				} else {
					summary.failed++
					summary.failures = append(summary.failures,
						fmt.Sprintf("<@%s> %s", r.primary.UserID, r.text))
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for _, group := range groups {
		wg.Add(1)
		go func(group []models.Binding) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- b.runGroup(group, cfg.Sign.GroupTimeout)
		}(group)
	}
	wg.Wait()
	close(results)
	<-aggregatorDone

	b.deliver(cfg, directOrder, directMsgs, groupOrder, groupMsgs)

	summary := fmt.Sprintf("Automatic sign-in finished: %d accounts succeeded, %d failed",
		successCount, failCount)

	b.broadcast(summary)

	return summary
}

// runGroup signs one account group, converting panics and timeouts into
// failed results so a bad group never takes down the batch.
func (b *Batch) runGroup(group []models.Binding, timeout time.Duration) groupResult {
	primary := group[0]
	result := groupResult{primary: primary}

	b.jitter()

	textCh := make(chan string, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Log.Errorf("Sign-in panicked for account %s: %v", primary.TaygedoUID, r)
				textCh <- fmt.Sprintf("[%s] sign-in failed unexpectedly", primary.DisplayName())
			}
		}()
		textCh <- b.Signer.SignAccountGroup(group)
	}()

	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	select {
	case text := <-textCh:
		result.text = text
	case <-time.After(timeout):
		logger.Log.Warnf("Sign-in timed out for account %s", primary.TaygedoUID)
		result.text = fmt.Sprintf("[%s] sign-in failed: timed out", primary.DisplayName())
	}

	result.ok = IsSuccessText(result.text)
	logger.Log.Infof("Batch sign-in account %s: %s", primary.TaygedoUID, result.text)
	return result
}

func (b *Batch) deliver(cfg configuration.Config, directOrder []string, directMsgs map[string][]string,
	groupOrder []string, groupMsgs map[string]*groupSummary) {
	if b.Reporter == nil {
		return
	}

	if cfg.Sign.DirectReport {
		for _, userID := range directOrder {
			text := strings.Join(directMsgs[userID], "\n")
			if err := b.Reporter.SendDirect(userID, text); err != nil {
				logger.Log.WithError(err).Errorf("Failed to deliver sign-in report to user %s", userID)
			}
		}
	}

	if cfg.Sign.GroupReport {
		for _, channelID := range groupOrder {
			summary := groupMsgs[channelID]
			text := fmt.Sprintf("Automatic sign-in finished\n%d succeeded, %d failed",
				summary.success, summary.failed)
			if len(summary.failures) > 0 {
				text += "\n" + strings.Join(summary.failures, "\n")
			}
			if err := b.Reporter.SendGroup(channelID, text); err != nil {
				logger.Log.WithError(err).Errorf("Failed to deliver sign-in summary to channel %s", channelID)
			}
		}
	}
}

// broadcast pushes the overall summary to every sign-result subscriber,
// independent of the per-channel report toggles.
func (b *Batch) broadcast(summary string) {
	if b.Subs == nil || b.Reporter == nil {
		return
	}

	subs, err := b.Subs.Subscriptions(models.SignResultTopic)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to load sign-result subscribers")
		return
	}

	for _, sub := range subs {
		var err error
		if sub.Kind == "group" {
			err = b.Reporter.SendGroup(sub.ChannelID, summary)
		} else {
			err = b.Reporter.SendDirect(sub.UserID, summary)
		}
		if err != nil {
			logger.Log.WithError(err).Errorf("Failed to broadcast sign-in summary to subscriber %d", sub.ID)
		}
	}
}

// PurgeLedger is the daily maintenance companion: it drops ledger entries
// two days old or older so the table stays bounded.
func (b *Batch) PurgeLedger() {
	cutoff := models.PurgeCutoff(time.Now())
	if err := b.Ledger.PurgeSignRecords(cutoff); err != nil {
		logger.Log.WithError(err).Error("Failed to purge old sign records")
		return
	}
	logger.Log.Infof("Purged sign records dated %s or earlier", cutoff)
}

// StartScheduler registers the daily sign-in run and the ledger purge on one
// cron instance and starts it.
func StartScheduler(batch *Batch) (*cron.Cron, error) {
	cfg := configuration.Get()

	c := cron.New()

	schedule := fmt.Sprintf("%d %d * * *", cfg.Sign.Minute, cfg.Sign.Hour)
	if _, err := c.AddFunc(schedule, func() {
		summary := batch.Run(*configuration.Get())
		logger.Log.Info(summary)
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule daily sign-in: %w", err)
	}

	if _, err := c.AddFunc("5 0 * * *", batch.PurgeLedger); err != nil {
		return nil, fmt.Errorf("failed to schedule ledger purge: %w", err)
	}

	c.Start()
	logger.Log.Infof("Daily sign-in scheduled at %02d:%02d", cfg.Sign.Hour, cfg.Sign.Minute)
	return c, nil
}
