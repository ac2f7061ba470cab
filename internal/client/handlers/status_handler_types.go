package handlers

type StatusResponse struct {
	Status        string        `json:"status"`
	Timestamp     string        `json:"ts"`
	Version       string        `json:"version"`
	Revision      string        `json:"revision"`
	BuildDate     string        `json:"buildDate"`
	ServerURL     string        `json:"serverUrl"`
	MergeStrategy string        `json:"mergeStrategy"`
	Pending       PendingInfo   `json:"pending"`
	Conflicts     int           `json:"conflicts"`
	LastSync      *SyncReport   `json:"lastSync,omitempty"`
	Process       *ProcessStats `json:"process,omitempty"`
}

type PendingInfo struct {
	Local  int `json:"local"`
	Remote int `json:"remote"`
}
