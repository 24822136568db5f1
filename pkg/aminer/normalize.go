package aminer

import (
	"strings"

	"github.com/google/uuid"

	"github.com/ihainan/scholar-data-proxy/pkg/errdefs"
)

// Detail is the stable official-format response served to clients. The
// normalized fields are always present (possibly empty); the enriched bag
// is populated only from what the provider actually returned.
type Detail struct {
	Code     int              `json:"code"`
	Success  bool             `json:"success"`
	Msg      string           `json:"msg"`
	Data     NormalizedPerson `json:"data"`
	Enriched map[string]any   `json:"enriched,omitempty"`
	LogID    string           `json:"log_id"`
}

// NormalizedPerson is the locale-aware normalized scholar shape.
type NormalizedPerson struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	NameZh     string   `json:"name_zh"`
	Bio        string   `json:"bio"`
	BioZh      string   `json:"bio_zh"`
	Edu        string   `json:"edu"`
	EduZh      string   `json:"edu_zh"`
	Position   string   `json:"position"`
	PositionZh string   `json:"position_zh"`
	Orgs       []string `json:"orgs"`
	OrgZhs     []string `json:"org_zhs"`
	Honor      []string `json:"honor"`
	Award      string   `json:"award"`
	CreateTime string   `json:"create_time"`
	UpdateTime string   `json:"update_time"`
	Year       *int     `json:"year"`
	Domain     string   `json:"domain"`
	PersonID   string   `json:"person_id"`
}

// Normalize converts a raw provider payload into the official response
// shape plus the enriched-extras bag.
func Normalize(resp *PersonResponse) (*Detail, error) {
	person, ok := resp.FirstPerson()
	if !ok {
		return nil, errdefs.New(errdefs.KindUpstream, "invalid provider response format")
	}

	profile := person.Prof()

	var orgs, orgZhs []string
	if profile.Affiliation != "" {
		orgs = []string{profile.Affiliation}
	}
	if profile.AffiliationZh != "" {
		orgZhs = []string{profile.AffiliationZh}
	}

	detail := &Detail{
		Code:    200,
		Success: true,
		Msg:     "",
		Data: NormalizedPerson{
			ID:         person.ID,
			Name:       person.Name,
			NameZh:     person.NameZh,
			Bio:        profile.Bio,
			BioZh:      profile.BioZh,
			Edu:        profile.Edu,
			EduZh:      profile.EduZh,
			Position:   profile.Position,
			PositionZh: profile.PositionZh,
			Orgs:       orgs,
			OrgZhs:     orgZhs,
			// The web payload carries no honor/award block; these stay
			// empty so the official shape is complete.
			Honor:    []string{},
			Award:    "",
			Domain:   "",
			PersonID: person.ID,
		},
		LogID: newLogID(),
	}

	if enriched := ExtractEnriched(person); len(enriched) > 0 {
		detail.Enriched = enriched
	}
	return detail, nil
}

// ExtractEnriched pulls the loosely-typed extras (links, indices, tags,
// stats) out of a raw scholar record. Only fields the provider actually
// returned appear in the bag.
func ExtractEnriched(person *Person) map[string]any {
	enriched := map[string]any{}
	profile := person.Prof()

	if url := person.GoogleScholarURL(); url != "" {
		enriched["google_scholar"] = url
	}
	if url := person.DBLPURL(); url != "" {
		enriched["dblp"] = url
	}
	if profile.Homepage != "" {
		enriched["homepage"] = profile.Homepage
	}
	if profile.Phone != "" {
		enriched["phone"] = profile.Phone
	}
	if person.Avatar != "" {
		enriched["avatar_aminer"] = person.Avatar
	}
	if person.Indices != nil {
		enriched["indices"] = person.Indices
	}
	if len(person.Tags) > 0 {
		enriched["research_tags"] = capped(person.Tags, 10)
	}
	if len(person.TagsScore) > 0 {
		enriched["research_tags_scores"] = cappedFloats(person.TagsScore, 10)
	}

	enriched["aminer_stats"] = map[string]int{
		"num_viewed":   person.NumViewed,
		"num_followed": person.NumFollowed,
		"num_upvoted":  person.NumUpvoted,
	}

	if profile.Address != "" {
		enriched["address"] = profile.Address
	}
	if profile.Fax != "" {
		enriched["fax"] = profile.Fax
	}
	return enriched
}

func capped(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

func cappedFloats(values []float64, n int) []float64 {
	if len(values) > n {
		return values[:n]
	}
	return values
}

// newLogID mints a response log id in the custom_<hex> format.
func newLogID() string {
	return "custom_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
