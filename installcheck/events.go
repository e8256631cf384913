package installcheck

import (
	"encoding/json"
	"fmt"
)

// Listener is a callback function that receives events during a check.
type Listener func(fmt.Stringer)

func jsonString(v interface{}) string {
	b, _ := json.Marshal(map[string]interface{}{
		fmt.Sprintf("%T", v): v,
	})
	return string(b)
}

// EventCheckStart is emitted when a check starts.
type EventCheckStart struct {
	Package      string `json:"package,omitempty"`
	Version      string `json:"version,omitempty"`
	Architecture string `json:"architecture,omitempty"`
	Source       bool   `json:"source,omitempty"`
}

func (e EventCheckStart) String() string { return jsonString(e) }

// EventGroupSatisfied is emitted for a dependency already satisfied by the
// installed packages.
type EventGroupSatisfied struct {
	Group string `json:"group,omitempty"`
}

func (e EventGroupSatisfied) String() string { return jsonString(e) }

// EventNeedInstall is emitted when a package is selected to satisfy a
// dependency.
type EventNeedInstall struct {
	Package string `json:"package,omitempty"`
	Version string `json:"version,omitempty"`
	Group   string `json:"group,omitempty"`
}

func (e EventNeedInstall) String() string { return jsonString(e) }

// EventAmbiguousProvider is emitted when a virtual alternative is skipped
// because several packages provide it.
type EventAmbiguousProvider struct {
	Name      string   `json:"name,omitempty"`
	Providers []string `json:"providers,omitempty"`
}

func (e EventAmbiguousProvider) String() string { return jsonString(e) }

// EventConflict is emitted for each conflicting package.
type EventConflict struct {
	Package string `json:"package,omitempty"`
	Version string `json:"version,omitempty"`
	Rule    string `json:"rule,omitempty"`
}

func (e EventConflict) String() string { return jsonString(e) }

// EventReplaces is emitted when Replaces cancels a conflict.
type EventReplaces struct {
	Package string `json:"package,omitempty"`
	Version string `json:"version,omitempty"`
}

func (e EventReplaces) String() string { return jsonString(e) }

// EventMarkDelete is emitted when a build conflict is marked for removal.
type EventMarkDelete struct {
	Package string `json:"package,omitempty"`
}

func (e EventMarkDelete) String() string { return jsonString(e) }

// EventCheckResult is emitted when a check ends.
type EventCheckResult struct {
	Package     string   `json:"package,omitempty"`
	OK          bool     `json:"ok"`
	Reason      string   `json:"reason,omitempty"`
	NeedInstall []string `json:"need_install,omitempty"`
	Conflicts   []string `json:"conflicts,omitempty"`
}

func (e EventCheckResult) String() string { return jsonString(e) }
