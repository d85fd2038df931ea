package discord

// Discord limits enforced before sending.
const (
	MaxContentLength     = 2000
	MaxEmbedTitle        = 256
	MaxEmbedDescription  = 4096
	MaxEmbedFooterLength = 2048
)

// Message is the JSON body of an execute-webhook call.
type Message struct {
	Content         string           `json:"content,omitempty"`
	Username        string           `json:"username,omitempty"`
	AvatarURL       string           `json:"avatar_url,omitempty"`
	Embeds          []Embed          `json:"embeds,omitempty"`
	AllowedMentions *AllowedMentions `json:"allowed_mentions,omitempty"`
	Attachments     []Attachment     `json:"attachments,omitempty"`
}

type Embed struct {
	Title       string       `json:"title,omitempty"`
	URL         string       `json:"url,omitempty"`
	Description string       `json:"description,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Color       int          `json:"color,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Image       *EmbedMedia  `json:"image,omitempty"`
	Video       *EmbedMedia  `json:"video,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

type EmbedMedia struct {
	URL string `json:"url"`
}

// AllowedMentions with an empty, non-nil Parse suppresses every mention.
type AllowedMentions struct {
	Parse []string `json:"parse"`
}

// Attachment describes a multipart file part ("files[ID]") inside payload_json.
type Attachment struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
}

// File is a local file sent alongside the message.
type File struct {
	Name        string
	Path        string
	ContentType string
}

// AttachmentURL is how an embed references an uploaded file.
func AttachmentURL(filename string) string {
	return "attachment://" + filename
}
