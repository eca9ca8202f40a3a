package x

// Wire-format types for the GraphQL responses. These stay inside this
// package; the boundary mapping in driver.go is the only consumer.

// timeFormat is the legacy created_at format ("Tue Apr 10 12:00:00 +0000 2024").
const timeFormat = "Mon Jan 02 15:04:05 -0700 2006"

type graphQLEnvelope[T any] struct {
	Data *T `json:"data"`
}

// UserByScreenName

type userByScreenNameData struct {
	User struct {
		Result userResult `json:"result"`
	} `json:"user"`
}

type userResult struct {
	RestID string     `json:"rest_id"`
	Legacy userLegacy `json:"legacy"`
}

type userLegacy struct {
	ScreenName  string `json:"screen_name"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	MediaCount  int    `json:"media_count"`
}

// UserMedia timeline

type userMediaData struct {
	User struct {
		Result struct {
			TimelineV2 struct {
				Timeline struct {
					Instructions []timelineInstruction `json:"instructions"`
				} `json:"timeline"`
			} `json:"timeline_v2"`
		} `json:"result"`
	} `json:"user"`
}

// timelineInstruction is one classified unit of a page response. Entries
// carry content batches and cursor markers; ModuleItems carry batched
// module entries.
type timelineInstruction struct {
	Type        string          `json:"type"`
	Entries     []timelineEntry `json:"entries"`
	ModuleItems []moduleItem    `json:"moduleItems"`
}

type timelineEntry struct {
	EntryID string       `json:"entryId"`
	Content entryContent `json:"content"`
}

type entryContent struct {
	Value string       `json:"value"` // cursor markers
	Items []moduleItem `json:"items"` // content batches
}

type moduleItem struct {
	EntryID string `json:"entryId"`
	Item    struct {
		ItemContent struct {
			TweetResults struct {
				Result *tweetResult `json:"result"`
			} `json:"tweet_results"`
		} `json:"itemContent"`
	} `json:"item"`
}

// tweetResult is either the tweet itself or a visibility wrapper with the
// tweet nested one level down.
type tweetResult struct {
	RestID    string       `json:"rest_id"`
	Tweet     *tweetResult `json:"tweet"`
	Core      *tweetCore   `json:"core"`
	Legacy    *tweetLegacy `json:"legacy"`
	Tombstone *struct{}    `json:"tombstone"`
}

type tweetCore struct {
	UserResults struct {
		Result userResult `json:"result"`
	} `json:"user_results"`
}

type tweetLegacy struct {
	CreatedAt string `json:"created_at"`
	FullText  string `json:"full_text"`
	Entities  struct {
		Hashtags []struct {
			Text string `json:"text"`
		} `json:"hashtags"`
		Media []wireMedia `json:"media"`
	} `json:"entities"`
	ExtendedEntities *struct {
		Media []wireMedia `json:"media"`
	} `json:"extended_entities"`
}

type wireMedia struct {
	Type          string `json:"type"`
	MediaURLHTTPS string `json:"media_url_https"`
	VideoInfo     *struct {
		Variants []wireVariant `json:"variants"`
	} `json:"video_info"`
}

type wireVariant struct {
	Bitrate *int   `json:"bitrate,omitempty"`
	URL     string `json:"url"`
}
