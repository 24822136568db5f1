package aminer

// PersonResponse is the raw payload of the provider's getPerson magic
// endpoint. Every layer below the top-level result list is optional; use
// the accessors instead of indexing into the slices directly.
type PersonResponse struct {
	Data []PersonResult `json:"data"`
}

// PersonResult is one action result inside a PersonResponse.
type PersonResult struct {
	// Succeed is set to false when the provider confirms the scholar is
	// not found or unavailable. Absent means success.
	Succeed *bool       `json:"succeed,omitempty"`
	Code    int         `json:"code,omitempty"`
	Meta    *ResultMeta `json:"meta,omitempty"`
	Data    []Person    `json:"data,omitempty"`
}

// ResultMeta carries provider-side failure context.
type ResultMeta struct {
	Context string `json:"context,omitempty"`
}

// Person is the raw scholar record.
type Person struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	NameZh      string    `json:"name_zh,omitempty"`
	Avatar      string    `json:"avatar,omitempty"`
	Profile     *Profile  `json:"profile,omitempty"`
	Links       *Links    `json:"links,omitempty"`
	Indices     *Indices  `json:"indices,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	TagsZh      []string  `json:"tags_zh,omitempty"`
	TagsScore   []float64 `json:"tags_score,omitempty"`
	NumViewed   int       `json:"num_viewed,omitempty"`
	NumFollowed int       `json:"num_followed,omitempty"`
	NumUpvoted  int       `json:"num_upvoted,omitempty"`
}

// Profile is the nested free-text profile block.
type Profile struct {
	Position      string `json:"position,omitempty"`
	PositionZh    string `json:"position_zh,omitempty"`
	Affiliation   string `json:"affiliation,omitempty"`
	AffiliationZh string `json:"affiliation_zh,omitempty"`
	Work          string `json:"work,omitempty"`
	WorkZh        string `json:"work_zh,omitempty"`
	Gender        string `json:"gender,omitempty"`
	Lang          string `json:"lang,omitempty"`
	Homepage      string `json:"homepage,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	Fax           string `json:"fax,omitempty"`
	Bio           string `json:"bio,omitempty"`
	BioZh         string `json:"bio_zh,omitempty"`
	Edu           string `json:"edu,omitempty"`
	EduZh         string `json:"edu_zh,omitempty"`
	Address       string `json:"address,omitempty"`
	Note          string `json:"note,omitempty"`
	Title         string `json:"title,omitempty"`
}

// Links holds external profile links.
type Links struct {
	GS       *LinkEntry     `json:"gs,omitempty"`
	Resource *ResourceLinks `json:"resource,omitempty"`
}

// LinkEntry is a single external link.
type LinkEntry struct {
	URL string `json:"url,omitempty"`
}

// ResourceLinks wraps the provider's resource link list.
type ResourceLinks struct {
	ResourceLink []ResourceLink `json:"resource_link,omitempty"`
}

// ResourceLink is one entry of the resource link list.
type ResourceLink struct {
	ID  string `json:"id,omitempty"`
	URL string `json:"url,omitempty"`
}

// Indices holds the scholar's academic indices. Pointer fields preserve
// the distinction between "zero" and "not reported".
type Indices struct {
	HIndex      *float64 `json:"hindex,omitempty"`
	GIndex      *float64 `json:"gindex,omitempty"`
	Pubs        *float64 `json:"pubs,omitempty"`
	Citations   *float64 `json:"citations,omitempty"`
	NewStar     *float64 `json:"newStar,omitempty"`
	RisingStar  *float64 `json:"risingStar,omitempty"`
	Activity    *float64 `json:"activity,omitempty"`
	Diversity   *float64 `json:"diversity,omitempty"`
	Sociability *float64 `json:"sociability,omitempty"`
}

// FirstResult returns the first action result, if any.
func (r *PersonResponse) FirstResult() (*PersonResult, bool) {
	if r == nil || len(r.Data) == 0 {
		return nil, false
	}
	return &r.Data[0], true
}

// FirstPerson returns the first scholar record, if any.
func (r *PersonResponse) FirstPerson() (*Person, bool) {
	res, ok := r.FirstResult()
	if !ok || len(res.Data) == 0 {
		return nil, false
	}
	return &res.Data[0], true
}

// Failed reports whether the provider explicitly flagged this result as
// not found or unavailable.
func (r *PersonResult) Failed() bool {
	return r.Succeed != nil && !*r.Succeed
}

// FailureContext returns the provider-side context string for a failed
// result, if any.
func (r *PersonResult) FailureContext() string {
	if r.Meta == nil {
		return ""
	}
	return r.Meta.Context
}

// Prof returns the profile block, or an empty one when absent.
func (p *Person) Prof() *Profile {
	if p.Profile == nil {
		return &Profile{}
	}
	return p.Profile
}

// EmailPath returns the embedded email-image fetch path, or "" when the
// scholar has no email on file.
func (p *Person) EmailPath() string {
	return p.Prof().Email
}

// GoogleScholarURL returns the Google Scholar profile link, if any.
func (p *Person) GoogleScholarURL() string {
	if p.Links == nil || p.Links.GS == nil {
		return ""
	}
	return p.Links.GS.URL
}

// DBLPURL returns the DBLP profile link, if any.
func (p *Person) DBLPURL() string {
	if p.Links == nil || p.Links.Resource == nil {
		return ""
	}
	for _, link := range p.Links.Resource.ResourceLink {
		if link.ID == "dblp" && link.URL != "" {
			return link.URL
		}
	}
	return ""
}
