package notify

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var messageKeys = map[Kind]string{
	KindPreNotice:          "Bedtime at %s in 30 minutes. Start winding down.",
	KindSleepPrompt:        "It is %s. Confirm that you are going to sleep, or skip tonight.",
	KindNightMissed:        "Tonight was missed. Your streak was reset and bedtime stays at %s.",
	KindPermissionRequired: "Please grant alarm permission so the %s bedtime can be scheduled.",
	KindAlarmClockFallback: "Exact alarms are not allowed. The %s bedtime uses a visible alarm instead.",
}

// bokmal is Norwegian Bokmål.
var bokmal = language.MustParse("nb")

var supported = []language.Tag{language.English, bokmal}

var matcher = language.NewMatcher(supported)

func init() {
	nb := map[Kind]string{
		KindPreNotice:          "Leggetid klokken %s om 30 minutter. Begynn å roe ned.",
		KindSleepPrompt:        "Klokken er %s. Bekreft at du legger deg, eller hopp over i kveld.",
		KindNightMissed:        "Kvelden ble ikke fullført. Rekken er nullstilt og leggetiden blir %s.",
		KindPermissionRequired: "Gi tillatelse til alarmer slik at leggetiden %s kan planlegges.",
		KindAlarmClockFallback: "Eksakte alarmer er ikke tillatt. Leggetiden %s bruker en synlig alarm.",
	}
	for kind, key := range messageKeys {
		_ = message.SetString(language.English, key, key)
		_ = message.SetString(bokmal, key, nb[kind])
	}
}

// MatchLocale resolves a BCP 47 tag to a supported language.
func MatchLocale(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}
