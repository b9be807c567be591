package preferences

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gatherly/internal/types"
)

// EffectiveSendTime computes when a notification for the given trigger time
// should actually be sent, applying the user's advance notice and quiet
// hours settings.
//
// The adjustment is forward-only: advance notice moves the send earlier than
// the trigger, quiet hours then push it later, never earlier. A send that
// lands inside the quiet window moves to the window's end; when the window
// end has already passed relative to the landing time, it moves to the
// window end the following day.
func EffectiveSendTime(pref *types.NotificationPreference, trigger time.Time) time.Time {
	sendAt := trigger.Add(-time.Duration(pref.AdvanceNoticeHours) * time.Hour)
	return AdjustForQuietHours(pref, sendAt)
}

// AdjustForQuietHours returns t pushed out of the user's quiet window, or t
// unchanged when quiet hours are disabled, malformed, or not in effect.
// Malformed windows fail open: delivering at an awkward hour beats silently
// dropping the notification.
func AdjustForQuietHours(pref *types.NotificationPreference, t time.Time) time.Time {
	if pref.QuietHoursStart == "" || pref.QuietHoursEnd == "" {
		return t
	}

	startMin, err := parseClock(pref.QuietHoursStart)
	if err != nil {
		return t
	}
	endMin, err := parseClock(pref.QuietHoursEnd)
	if err != nil {
		return t
	}
	if startMin == endMin {
		// Zero-length window.
		return t
	}

	tMin := t.Hour()*60 + t.Minute()

	inWindow := false
	if startMin < endMin {
		// Same-day window, e.g. 13:00-15:00.
		inWindow = tMin >= startMin && tMin < endMin
	} else {
		// Overnight window, e.g. 22:00-08:00.
		inWindow = tMin >= startMin || tMin < endMin
	}
	if !inWindow {
		return t
	}

	adjusted := time.Date(t.Year(), t.Month(), t.Day(),
		endMin/60, endMin%60, 0, 0, t.Location())
	if !adjusted.After(t) {
		adjusted = adjusted.AddDate(0, 0, 1)
	}
	return adjusted
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// ChannelsFor returns the channels a reminder may use for one user: the
// intersection of the reminder's channel flags and the user's enabled
// channels.
func ChannelsFor(rem *types.Reminder, pref *types.NotificationPreference) []types.Channel {
	var channels []types.Channel
	if rem.SendEmail && pref.EmailEnabled {
		channels = append(channels, types.ChannelEmail)
	}
	if rem.SendSMS && pref.SMSEnabled {
		channels = append(channels, types.ChannelSMS)
	}
	if rem.SendPush && pref.PushEnabled {
		channels = append(channels, types.ChannelPush)
	}
	if rem.SendInApp && pref.InAppEnabled {
		channels = append(channels, types.ChannelInApp)
	}
	return channels
}
