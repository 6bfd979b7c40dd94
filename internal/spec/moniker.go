package spec

import "strings"

// Moniker is the (application, stack, detail) naming triple.
type Moniker struct {
	App    string `json:"app"`
	Stack  string `json:"stack,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// String renders the moniker as app, app-stack, app--detail or app-stack-detail.
func (m Moniker) String() string {
	switch {
	case m.Stack == "" && m.Detail == "":
		return m.App
	case m.Detail == "":
		return m.App + "-" + m.Stack
	case m.Stack == "":
		return m.App + "--" + m.Detail
	default:
		return strings.Join([]string{m.App, m.Stack, m.Detail}, "-")
	}
}

func (m Moniker) validate(v *violations, maxLen int) {
	if m.App == "" {
		v.add("moniker.app is required")
	}
	if strings.Contains(m.App, "-") {
		v.addf("moniker.app %q must not contain '-'", m.App)
	}
	if maxLen > 0 && len(m.String()) > maxLen {
		v.addf("name %q is %d characters, the maximum is %d", m.String(), len(m.String()), maxLen)
	}
}
