package server

// DeviceInfo identifies this client to the server when opening a
// playback session.
type DeviceInfo struct {
	DeviceID      string `json:"deviceId"`
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion"`
}

// PlaySessionRequest is the body of the open-session call. The server
// picks the delivery mode from the advertised mime types: if every file
// is directly decodable it hands back the original files, otherwise it
// starts a transcode and returns a stream manifest.
type PlaySessionRequest struct {
	DeviceInfo         DeviceInfo `json:"deviceInfo"`
	SupportedMimeTypes []string   `json:"supportedMimeTypes"`
	MediaPlayer        string     `json:"mediaPlayer"`
	ForceDirectPlay    bool       `json:"forceDirectPlay"`
	ForceTranscode     bool       `json:"forceTranscode"`
}

// Play methods returned by the server.
const (
	PlayMethodDirect    = 0
	PlayMethodTranscode = 1
)

// PlaySessionResponse describes an open playback session.
type PlaySessionResponse struct {
	ID            string           `json:"id"`
	LibraryItemID string           `json:"libraryItemId"`
	PlayMethod    int              `json:"playMethod"`
	CurrentTime   float64          `json:"currentTime"` // authoritative resume position
	DisplayTitle  string           `json:"displayTitle"`
	DisplayAuthor string           `json:"displayAuthor"`
	AudioTracks   []audioTrackJSON `json:"audioTracks"`
}

// SyncPayload carries a heartbeat or close report.
type SyncPayload struct {
	TimeListened float64 `json:"timeListened"`
	CurrentTime  float64 `json:"currentTime"`
}

// Wire shapes below mirror the server's JSON; they are converted to
// media types at the client boundary.

type audioTrackJSON struct {
	Index       int     `json:"index"`
	StartOffset float64 `json:"startOffset"`
	Duration    float64 `json:"duration"`
	ContentURL  string  `json:"contentUrl"`
	MimeType    string  `json:"mimeType"`
}

type chapterJSON struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Title string  `json:"title"`
}

type itemJSON struct {
	ID    string `json:"id"`
	Media struct {
		Duration float64 `json:"duration"`
		Metadata struct {
			Title      string `json:"title"`
			AuthorName string `json:"authorName"`
		} `json:"metadata"`
		Chapters   []chapterJSON    `json:"chapters"`
		AudioFiles []audioTrackJSON `json:"audioFiles"`
	} `json:"media"`
	UserMediaProgress *progressJSON `json:"userMediaProgress"`
}

type progressJSON struct {
	LibraryItemID string  `json:"libraryItemId"`
	CurrentTime   float64 `json:"currentTime"`
	Duration      float64 `json:"duration"`
	Progress      float64 `json:"progress"`
	IsFinished    bool    `json:"isFinished"`
	LastUpdate    int64   `json:"lastUpdate"` // unix millis
}

type meJSON struct {
	ID            string         `json:"id"`
	Username      string         `json:"username"`
	MediaProgress []progressJSON `json:"mediaProgress"`
}
