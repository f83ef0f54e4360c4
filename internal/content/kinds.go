// Package content defines the entity kinds stored in ordered collections and
// binds each of them to a typed collection.Store.
package content

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Collection names of the builtin kinds.
const (
	Achievements         = "achievements"
	CoreStrengths        = "core_strengths"
	WhyChooseUs          = "why_choose_us"
	FutureVisionGoals    = "future_vision_goals"
	FutureVisionTimeline = "future_vision_timeline"
	AboutUsValues        = "about_us_values"
	AboutUsTeamMembers   = "about_us_team_members"
	AboutTimeline        = "about_timeline"
)

// BuiltinKinds lists every collection name the catalog knows how to serve.
func BuiltinKinds() []string {
	return []string{
		Achievements, CoreStrengths, WhyChooseUs, FutureVisionGoals, FutureVisionTimeline,
		AboutUsValues, AboutUsTeamMembers, AboutTimeline,
	}
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New(name + " is required")
	}
	return nil
}

func requiredIfSet(name string, value *string) error {
	if value == nil {
		return nil
	}
	return required(name, *value)
}

// webURL accepts an empty value or an absolute http(s) URL.
func webURL(name, value string) error {
	if value == "" {
		return nil
	}
	u, err := url.ParseRequestURI(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be a valid URL", name)
	}
	return nil
}

func webURLIfSet(name string, value *string) error {
	if value == nil {
		return nil
	}
	return webURL(name, *value)
}

func set(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// Achievement is a certification or milestone shown on the quality page.
type Achievement struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
	Category    string `json:"category,omitempty"`
	Year        string `json:"year,omitempty"`
	Stats       string `json:"stats,omitempty"`
}

func (a Achievement) Validate() error {
	return errors.Join(required("title", a.Title), required("description", a.Description))
}

// AchievementPatch is a partial Achievement. Nil fields are left untouched.
type AchievementPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	Category    *string `json:"category"`
	Year        *string `json:"year"`
	Stats       *string `json:"stats"`
}

func (p AchievementPatch) Validate() error {
	return errors.Join(requiredIfSet("title", p.Title), requiredIfSet("description", p.Description))
}

func (p AchievementPatch) Apply(a *Achievement) {
	set(&a.Title, p.Title)
	set(&a.Description, p.Description)
	set(&a.Icon, p.Icon)
	set(&a.Category, p.Category)
	set(&a.Year, p.Year)
	set(&a.Stats, p.Stats)
}

// CoreStrength is one card in the core strengths section.
type CoreStrength struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
}

func (c CoreStrength) Validate() error {
	return errors.Join(required("title", c.Title), required("description", c.Description))
}

type CoreStrengthPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
}

func (p CoreStrengthPatch) Validate() error {
	return errors.Join(requiredIfSet("title", p.Title), requiredIfSet("description", p.Description))
}

func (p CoreStrengthPatch) Apply(c *CoreStrength) {
	set(&c.Title, p.Title)
	set(&c.Description, p.Description)
	set(&c.Icon, p.Icon)
}

// WhyReason is one "why choose us" reason, optionally with a headline stat and
// a background image.
type WhyReason struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Stat        string `json:"stat,omitempty"`
	StatText    string `json:"statText,omitempty"`
	Icon        string `json:"icon,omitempty"`
	BgImageURL  string `json:"bgImageUrl,omitempty"`
}

func (w WhyReason) Validate() error {
	return errors.Join(required("title", w.Title), required("description", w.Description))
}

type WhyReasonPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Stat        *string `json:"stat"`
	StatText    *string `json:"statText"`
	Icon        *string `json:"icon"`
	BgImageURL  *string `json:"bgImageUrl"`
}

func (p WhyReasonPatch) Validate() error {
	return errors.Join(requiredIfSet("title", p.Title), requiredIfSet("description", p.Description))
}

func (p WhyReasonPatch) Apply(w *WhyReason) {
	set(&w.Title, p.Title)
	set(&w.Description, p.Description)
	set(&w.Stat, p.Stat)
	set(&w.StatText, p.StatText)
	set(&w.Icon, p.Icon)
	set(&w.BgImageURL, p.BgImageURL)
}

// VisionGoal is a future-vision goal card.
type VisionGoal struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
}

func (g VisionGoal) Validate() error {
	return errors.Join(required("title", g.Title), required("description", g.Description))
}

type VisionGoalPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
}

func (p VisionGoalPatch) Validate() error {
	return errors.Join(requiredIfSet("title", p.Title), requiredIfSet("description", p.Description))
}

func (p VisionGoalPatch) Apply(g *VisionGoal) {
	set(&g.Title, p.Title)
	set(&g.Description, p.Description)
	set(&g.Icon, p.Icon)
}

// TimelineItem is a dated entry on the future-vision timeline.
type TimelineItem struct {
	Year        string `json:"year"`
	Description string `json:"description"`
}

func (t TimelineItem) Validate() error {
	return errors.Join(required("year", t.Year), required("description", t.Description))
}

type TimelineItemPatch struct {
	Year        *string `json:"year"`
	Description *string `json:"description"`
}

func (p TimelineItemPatch) Validate() error {
	return errors.Join(requiredIfSet("year", p.Year), requiredIfSet("description", p.Description))
}

func (p TimelineItemPatch) Apply(t *TimelineItem) {
	set(&t.Year, p.Year)
	set(&t.Description, p.Description)
}

// AboutUsValue is one of the principles listed on the about-us page.
type AboutUsValue struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

func (v AboutUsValue) Validate() error {
	return errors.Join(
		required("title", v.Title),
		required("description", v.Description),
		required("icon", v.Icon),
	)
}

type AboutUsValuePatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
}

func (p AboutUsValuePatch) Validate() error {
	return errors.Join(
		requiredIfSet("title", p.Title),
		requiredIfSet("description", p.Description),
		requiredIfSet("icon", p.Icon),
	)
}

func (p AboutUsValuePatch) Apply(v *AboutUsValue) {
	set(&v.Title, p.Title)
	set(&v.Description, p.Description)
	set(&v.Icon, p.Icon)
}

// TeamMember is a person shown in the about-us team grid. ImageURL is
// required; the social links are optional.
type TeamMember struct {
	Name        string `json:"name"`
	Role        string `json:"role"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	LinkedinURL string `json:"linkedinUrl,omitempty"`
	TwitterURL  string `json:"twitterUrl,omitempty"`
}

func (m TeamMember) Validate() error {
	return errors.Join(
		required("name", m.Name),
		required("role", m.Role),
		required("description", m.Description),
		required("imageUrl", m.ImageURL),
		webURL("imageUrl", m.ImageURL),
		webURL("linkedinUrl", m.LinkedinURL),
		webURL("twitterUrl", m.TwitterURL),
	)
}

type TeamMemberPatch struct {
	Name        *string `json:"name"`
	Role        *string `json:"role"`
	Description *string `json:"description"`
	ImageURL    *string `json:"imageUrl"`
	LinkedinURL *string `json:"linkedinUrl"`
	TwitterURL  *string `json:"twitterUrl"`
}

func (p TeamMemberPatch) Validate() error {
	return errors.Join(
		requiredIfSet("name", p.Name),
		requiredIfSet("role", p.Role),
		requiredIfSet("description", p.Description),
		requiredIfSet("imageUrl", p.ImageURL),
		webURLIfSet("imageUrl", p.ImageURL),
		webURLIfSet("linkedinUrl", p.LinkedinURL),
		webURLIfSet("twitterUrl", p.TwitterURL),
	)
}

func (p TeamMemberPatch) Apply(m *TeamMember) {
	set(&m.Name, p.Name)
	set(&m.Role, p.Role)
	set(&m.Description, p.Description)
	set(&m.ImageURL, p.ImageURL)
	set(&m.LinkedinURL, p.LinkedinURL)
	set(&m.TwitterURL, p.TwitterURL)
}

// AboutTimelineItem is a milestone in the about page's company history.
type AboutTimelineItem struct {
	Year        string `json:"year"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

func (t AboutTimelineItem) Validate() error {
	return errors.Join(
		required("year", t.Year),
		required("title", t.Title),
		required("description", t.Description),
		webURL("imageUrl", t.ImageURL),
	)
}

type AboutTimelineItemPatch struct {
	Year        *string `json:"year"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	ImageURL    *string `json:"imageUrl"`
}

func (p AboutTimelineItemPatch) Validate() error {
	return errors.Join(
		requiredIfSet("year", p.Year),
		requiredIfSet("title", p.Title),
		requiredIfSet("description", p.Description),
		webURLIfSet("imageUrl", p.ImageURL),
	)
}

func (p AboutTimelineItemPatch) Apply(t *AboutTimelineItem) {
	set(&t.Year, p.Year)
	set(&t.Title, p.Title)
	set(&t.Description, p.Description)
	set(&t.ImageURL, p.ImageURL)
}
