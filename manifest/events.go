package manifest

import (
	"encoding/json"
	"fmt"
)

// Listener is a callback function that receives events while a universe is built.
type Listener func(fmt.Stringer)

func jsonString(v interface{}) string {
	b, _ := json.Marshal(map[string]interface{}{
		fmt.Sprintf("%T", v): v,
	})
	return string(b)
}

// EventStatusLoaded is emitted when the dpkg status database is read.
type EventStatusLoaded struct {
	Path     string `json:"path,omitempty"`
	Packages int    `json:"packages"`
}

func (e EventStatusLoaded) String() string { return jsonString(e) }

// EventIndexLoaded is emitted when a Packages index is read.
type EventIndexLoaded struct {
	Path     string `json:"path,omitempty"`
	Packages int    `json:"packages"`
	Trusted  bool   `json:"trusted,omitempty"`
}

func (e EventIndexLoaded) String() string { return jsonString(e) }

// EventSourceFetched is emitted when the indices of a remote repository
// are downloaded.
type EventSourceFetched struct {
	URL       string `json:"url,omitempty"`
	Suite     string `json:"suite,omitempty"`
	Component string `json:"component,omitempty"`
	Packages  int    `json:"packages"`
}

func (e EventSourceFetched) String() string { return jsonString(e) }

// EventCandidateLoaded is emitted when a package to check is read.
type EventCandidateLoaded struct {
	FilePath     string `json:"file_path,omitempty"`
	Package      string `json:"package,omitempty"`
	Version      string `json:"version,omitempty"`
	Architecture string `json:"architecture,omitempty"`
	Source       bool   `json:"source,omitempty"`
}

func (e EventCandidateLoaded) String() string { return jsonString(e) }
