package services

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"TajiSignBot/errorhandler"
	"TajiSignBot/logger"
	"TajiSignBot/models"
	"TajiSignBot/taygedo"
)

const groupSeparator = "\n-----------------------------\n"

// Signer runs the daily sign-in for one account group at a time: one token
// refresh per account, one app-level sign-in, and one game-level sign-in per
// bound role, all deduplicated through the ledger.
type Signer struct {
	API      SignAPI
	Bindings BindingStore
	Ledger   SignLedger

	// Sleep is swappable so tests don't wait out the anti-automation
	// delays. Nil means time.Sleep.
	Sleep func(time.Duration)
}

func (sg *Signer) sleep(min, max time.Duration) {
	d := min + time.Duration(rand.Int63n(int64(max-min)))
	if sg.Sleep != nil {
		sg.Sleep(d)
		return
	}
	time.Sleep(d)
}

// SignUser signs every account group belonging to one Discord user and
// returns the joined result text.
func (sg *Signer) SignUser(userID string) string {
	bindings, err := sg.Bindings.BindingsByUser(userID)
	if err != nil {
		logger.Log.WithError(err).Errorf("Failed to load bindings for user %s", userID)
		return "Failed to load your accounts. Please try again later."
	}
	if len(bindings) == 0 {
		return "No Tajiduo account linked yet. Use /login first."
	}

	var parts []string
	for _, group := range GroupByAccount(bindings) {
		parts = append(parts, sg.SignAccountGroup(group))
	}
	return strings.Join(parts, groupSeparator)
}

// SignAccountGroup signs one account group: every binding shares one
// TaygedoUID. Remote failures are rendered into the result text, never
// returned; only an empty group is a caller bug.
func (sg *Signer) SignAccountGroup(group []models.Binding) string {
	if len(group) == 0 {
		panic("services: SignAccountGroup called with empty group")
	}

	primary := group[0]
	today := models.Today()

	// One refresh per account, with the primary binding's credential. If it
	// is rejected there is no point attempting any role.
	tokens, err := sg.API.RefreshToken(primary.RefreshToken, primary.DeviceID)
	if err != nil {
		return fmt.Sprintf("[%s] token expired: %s, please log in again",
			primary.DisplayName(), errorhandler.UserMessage(err))
	}

	// The refresh credential is per-account; every role's row must see the
	// rotated token before its next use.
	if err := sg.Bindings.UpdateRefreshToken(primary.TaygedoUID, tokens.RefreshToken); err != nil {
		logger.Log.WithError(err).Errorf("Failed to propagate refresh token for account %s", primary.TaygedoUID)
	}
	logger.Log.Debugf("Token refreshed for account %s", primary.TaygedoUID)

	var lines []string
	lines = append(lines, sg.appSign(tokens.AccessToken, primary, today))
	lines = append(lines, sg.gameSigns(tokens.AccessToken, group, today)...)

	return strings.Join(lines, "\n")
}

// appSign performs the platform-wide check-in, keyed by the account's
// primary binding.
func (sg *Signer) appSign(accessToken string, primary models.Binding, today string) string {
	record, err := sg.Ledger.SignState(primary.RoleID, today)
	if err != nil {
		logger.Log.WithError(err).Errorf("Ledger lookup failed for %s", primary.RoleID)
	}
	if record != nil && record.AppSign >= 1 {
		return "app already signed in today"
	}

	result, err := sg.API.AppSignIn(accessToken, primary.TaygedoUID, primary.DeviceID)
	if err != nil {
		if errorhandler.Classify(err) == errorhandler.IdempotentDuplicate {
			sg.markAppSigned(primary.RoleID, today)
			return "app already signed in today"
		}
		return fmt.Sprintf("app sign-in failed: %s", errorhandler.UserMessage(err))
	}

	sg.markAppSigned(primary.RoleID, today)
	return fmt.Sprintf("app sign-in done: +%d exp, +%d gold coins", result.Exp, result.GoldCoin)
}

// gameSigns performs the per-role check-ins, one line per role.
func (sg *Signer) gameSigns(accessToken string, group []models.Binding, today string) []string {
	var roles []models.Binding
	for _, b := range group {
		if b.HasRole() {
			roles = append(roles, b)
		}
	}
	if len(roles) == 0 {
		return nil
	}

	records := make(map[string]*models.SignRecord, len(roles))
	pending := 0
	for _, role := range roles {
		record, err := sg.Ledger.SignState(role.RoleID, today)
		if err != nil {
			logger.Log.WithError(err).Errorf("Ledger lookup failed for %s", role.RoleID)
		}
		records[role.RoleID] = record
		if record == nil || record.GameSign < 1 {
			pending++
		}
	}

	// The reward lookup is cosmetic; when it fails the sign-in lines just
	// lose their reward names.
	var rewards []taygedo.Reward
	days := -1
	if pending > 0 {
		sg.sleep(500*time.Millisecond, 1500*time.Millisecond)

		if d, err := sg.API.GetSignInState(accessToken); err == nil {
			days = d
		}
		if r, err := sg.API.GetSignInRewards(accessToken); err == nil {
			rewards = r
		}
	}

	lines := make([]string, 0, len(roles))
	for i, role := range roles {
		name := role.DisplayName()

		if record := records[role.RoleID]; record != nil && record.GameSign >= 1 {
			lines = append(lines, fmt.Sprintf("%s already signed in today", name))
			continue
		}

		err := sg.API.GameSignIn(accessToken, role.RoleID)
		switch {
		case err == nil:
			line := fmt.Sprintf("%s game sign-in done", name)
			if reward := taygedo.FormatReward(rewards, days); reward != "" {
				line = fmt.Sprintf("%s game sign-in done, %s", name, reward)
			}
			lines = append(lines, line)
			sg.markGameSigned(role.RoleID, today)
		case errorhandler.Classify(err) == errorhandler.IdempotentDuplicate:
			lines = append(lines, fmt.Sprintf("%s already signed in today", name))
			sg.markGameSigned(role.RoleID, today)
		default:
			lines = append(lines, fmt.Sprintf("%s game sign-in failed: %s",
				name, errorhandler.UserMessage(err)))
		}

		if i < len(roles)-1 {
			sg.sleep(300*time.Millisecond, 800*time.Millisecond)
		}
	}

	return lines
}

func (sg *Signer) markAppSigned(uid, date string) {
	if err := sg.Ledger.MarkAppSigned(uid, date); err != nil {
		logger.Log.WithError(err).Errorf("Failed to record app sign for %s", uid)
	}
}

func (sg *Signer) markGameSigned(uid, date string) {
	if err := sg.Ledger.MarkGameSigned(uid, date); err != nil {
		logger.Log.WithError(err).Errorf("Failed to record game sign for %s", uid)
	}
}

// GroupByAccount splits bindings into account groups sharing one TaygedoUID,
// preserving the input order within and across groups.
func GroupByAccount(bindings []models.Binding) [][]models.Binding {
	index := make(map[string]int)
	var groups [][]models.Binding
	for _, b := range bindings {
		if b.RefreshToken == "" {
			continue
		}
		pos, ok := index[b.TaygedoUID]
		if !ok {
			pos = len(groups)
			index[b.TaygedoUID] = pos
			groups = append(groups, nil)
		}
		groups[pos] = append(groups[pos], b)
	}
	return groups
}
