package models

// ModelTier selects the quality/cost band of the generation model
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierBalanced ModelTier = "balanced"
	TierPremium  ModelTier = "premium"
)

// Valid reports whether the tier is one of the known tiers
func (t ModelTier) Valid() bool {
	switch t {
	case TierFast, TierBalanced, TierPremium:
		return true
	}
	return false
}

// VerificationStatus records whether a research source's claims were checked
type VerificationStatus string

const (
	VerificationVerified   VerificationStatus = "verified"
	VerificationDisputed   VerificationStatus = "disputed"
	VerificationUnverified VerificationStatus = "unverified"
)

// ContentBrief is the immutable input to a generation run
type ContentBrief struct {
	UserID          string          `json:"user_id" yaml:"user_id" toml:"user_id" validate:"required"`
	Topic           string          `json:"topic" yaml:"topic" toml:"topic" validate:"required"`
	Audience        string          `json:"audience,omitempty" yaml:"audience" toml:"audience"`
	Tone            string          `json:"tone,omitempty" yaml:"tone" toml:"tone"`
	DurationSeconds int             `json:"duration_seconds,omitempty" yaml:"duration_seconds" toml:"duration_seconds" validate:"omitempty,min=60,max=14400"`
	ModelTier       ModelTier       `json:"model_tier,omitempty" yaml:"model_tier" toml:"model_tier" validate:"omitempty,oneof=fast balanced premium"`
	Frame           NarrativeFrame  `json:"frame" yaml:"frame" toml:"frame"`
	Hook            string          `json:"hook,omitempty" yaml:"hook" toml:"hook"`
	ContentPoints   []ContentPoint  `json:"content_points" yaml:"content_points" toml:"content_points" validate:"required,min=1,dive"`
	Sponsor         *SponsorSegment `json:"sponsor,omitempty" yaml:"sponsor" toml:"sponsor" validate:"omitempty"`
	Voice           VoiceProfile    `json:"voice" yaml:"voice" toml:"voice"`
	Sources         []Source        `json:"sources,omitempty" yaml:"sources" toml:"sources" validate:"dive"`
}

// NarrativeFrame is the problem/solution/transformation arc of the script
type NarrativeFrame struct {
	Problem        string `json:"problem,omitempty" yaml:"problem" toml:"problem"`
	Solution       string `json:"solution,omitempty" yaml:"solution" toml:"solution"`
	Transformation string `json:"transformation,omitempty" yaml:"transformation" toml:"transformation"`
}

// ContentPoint is one ordered topic the script must cover
type ContentPoint struct {
	Title           string `json:"title" yaml:"title" toml:"title" validate:"required"`
	Description     string `json:"description,omitempty" yaml:"description" toml:"description"`
	DurationSeconds int    `json:"duration_seconds,omitempty" yaml:"duration_seconds" toml:"duration_seconds" validate:"gte=0"`
	KeyTakeaway     string `json:"key_takeaway,omitempty" yaml:"key_takeaway" toml:"key_takeaway"`
}

// Source is a research input used to ground generation.
// ContentAlreadyFetched marks sources whose Content was filled upstream; the
// research fetcher skips them. DocumentKey points at an uploaded PDF in KV storage.
type Source struct {
	Title                 string             `json:"title" yaml:"title" toml:"title"`
	URL                   string             `json:"url,omitempty" yaml:"url" toml:"url"`
	Content               string             `json:"content,omitempty" yaml:"content" toml:"content"`
	Verification          VerificationStatus `json:"verification,omitempty" yaml:"verification" toml:"verification" validate:"omitempty,oneof=verified disputed unverified"`
	Starred               bool               `json:"starred,omitempty" yaml:"starred" toml:"starred"`
	Relevance             float64            `json:"relevance,omitempty" yaml:"relevance" toml:"relevance" validate:"gte=0,lte=1"`
	Synthesized           bool               `json:"synthesized,omitempty" yaml:"synthesized" toml:"synthesized"`
	ContentAlreadyFetched bool               `json:"content_already_fetched,omitempty" yaml:"content_already_fetched" toml:"content_already_fetched"`
	DocumentKey           string             `json:"document_key,omitempty" yaml:"document_key" toml:"document_key"`
}

// SponsorSegment is an optional sponsor read placed after a content point
type SponsorSegment struct {
	Name         string `json:"name" yaml:"name" toml:"name" validate:"required"`
	Message      string `json:"message" yaml:"message" toml:"message" validate:"required"`
	CallToAction string `json:"call_to_action,omitempty" yaml:"call_to_action" toml:"call_to_action"`
	AfterPoint   int    `json:"after_point,omitempty" yaml:"after_point" toml:"after_point" validate:"gte=0"`
}

// VoiceProfile describes the narrator
type VoiceProfile struct {
	Name       string   `json:"name,omitempty" yaml:"name" toml:"name"`
	Style      string   `json:"style,omitempty" yaml:"style" toml:"style"`
	Pacing     string   `json:"pacing,omitempty" yaml:"pacing" toml:"pacing"`
	Vocabulary string   `json:"vocabulary,omitempty" yaml:"vocabulary" toml:"vocabulary"`
	Avoid      []string `json:"avoid,omitempty" yaml:"avoid" toml:"avoid"`
}
