package panel

// QuickAction is a canned follow-up applied to the last text in the
// conversation.
type QuickAction string

const (
	Shorten   QuickAction = "shorten"
	Formalize QuickAction = "formalize"
	Hashtags  QuickAction = "hashtags"
	Emojis    QuickAction = "emojis"
)

var quickPrompts = map[QuickAction]string{
	Shorten:   "Make the last text shorter while keeping its meaning.",
	Formalize: "Rewrite the last text in a more formal, professional tone.",
	Hashtags:  "Add relevant hashtags to the last text.",
	Emojis:    "Add fitting emojis to the last text.",
}

// QuickActions lists the actions in display order.
func QuickActions() []QuickAction {
	return []QuickAction{Shorten, Formalize, Hashtags, Emojis}
}

func Prompt(a QuickAction) (string, bool) {
	p, ok := quickPrompts[a]
	return p, ok
}

func (a QuickAction) Label() string {
	switch a {
	case Shorten:
		return "Shorten"
	case Formalize:
		return "Formalize"
	case Hashtags:
		return "Add hashtags"
	case Emojis:
		return "Add emojis"
	default:
		return string(a)
	}
}
