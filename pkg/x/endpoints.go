package x

import (
	"encoding/json"
	"fmt"
	"net/url"
)

const (
	// BaseURL is the GraphQL API root.
	BaseURL = "https://x.com/i/api/graphql"

	// Query IDs are baked into the web client and rotate with it.
	userByScreenNamePath = "1VOOyvKkiI3FMmkeDNxM9A/UserByScreenName"
	userMediaPath        = "BGmkmGDG0kZPM-aoQtNTTw/UserMedia"

	// mediaPageSize is the number of timeline entries requested per page.
	mediaPageSize = 40
)

// Feature flag blobs the endpoints refuse to answer without.
const (
	userByScreenNameFeatures = `{"creator_subscriptions_tweet_preview_api_enabled":true,"hidden_profile_subscriptions_enabled":true,"highlights_tweets_tab_ui_enabled":true,"profile_label_improvements_pcf_label_in_post_enabled":true,"responsive_web_graphql_skip_user_profile_image_extensions_enabled":false,"responsive_web_graphql_timeline_navigation_enabled":true,"responsive_web_twitter_article_notes_tab_enabled":true,"rweb_tipjar_consumption_enabled":true,"subscriptions_feature_can_gift_premium":true,"subscriptions_verification_info_is_identity_verified_enabled":true,"subscriptions_verification_info_verified_since_enabled":true,"verified_phone_label_enabled":false}`

	userMediaFeatures = `{"rweb_video_screen_enabled":false,"payments_enabled":false,"profile_label_improvements_pcf_label_in_post_enabled":true,"rweb_tipjar_consumption_enabled":true,"verified_phone_label_enabled":false,"creator_subscriptions_tweet_preview_api_enabled":true,"responsive_web_graphql_timeline_navigation_enabled":true,"responsive_web_graphql_skip_user_profile_image_extensions_enabled":false,"premium_content_api_read_enabled":false,"communities_web_enable_tweet_community_results_fetch":true,"c9s_tweet_anatomy_moderator_badge_enabled":true,"responsive_web_grok_analyze_button_fetch_trends_enabled":false,"responsive_web_grok_analyze_post_followups_enabled":true,"responsive_web_jetfuel_frame":true,"responsive_web_grok_share_attachment_enabled":true,"articles_preview_enabled":true,"responsive_web_edit_tweet_api_enabled":true,"graphql_is_translatable_rweb_tweet_is_translatable_enabled":true,"view_counts_everywhere_api_enabled":true,"longform_notetweets_consumption_enabled":true,"responsive_web_twitter_article_tweet_consumption_enabled":true,"tweet_awards_web_tipping_enabled":false,"responsive_web_grok_show_grok_translated_post":false,"responsive_web_grok_analysis_button_from_backend":false,"creator_subscriptions_quote_tweet_preview_enabled":false,"freedom_of_speech_not_reach_fetch_enabled":true,"standardized_nudges_misinfo":true,"tweet_with_visibility_results_prefer_gql_limited_actions_policy_enabled":true,"longform_notetweets_rich_text_read_enabled":true,"longform_notetweets_inline_media_enabled":true,"responsive_web_grok_image_annotation_enabled":true,"responsive_web_grok_community_note_auto_translation_is_enabled":false,"responsive_web_enhance_cards_enabled":false,"responsive_web_graphql_exclude_directive_enabled":true,"rweb_video_timestamps_enabled":true}`
)

// buildURL assembles a GraphQL GET URL with its variables/features blobs.
func buildURL(base, endpoint, variables, features, fieldToggles string) string {
	params := url.Values{}
	params.Set("variables", variables)
	if features != "" {
		params.Set("features", features)
	}
	if fieldToggles != "" {
		params.Set("fieldToggles", fieldToggles)
	}
	return fmt.Sprintf("%s/%s?%s", base, endpoint, params.Encode())
}

// userByScreenNameURL builds the profile lookup URL for a handle.
func (c *Client) userByScreenNameURL(handle string) string {
	variables, _ := json.Marshal(map[string]interface{}{
		"screen_name": handle,
	})
	return buildURL(c.baseURL, userByScreenNamePath, string(variables),
		userByScreenNameFeatures, `{"withAuxiliaryUserLabels":true}`)
}

// userMediaURL builds the paginated media timeline URL for a user ID.
func (c *Client) userMediaURL(userID, cursor string) string {
	vars := map[string]interface{}{
		"userId":                 userID,
		"count":                  mediaPageSize,
		"includePromotedContent": false,
		"withClientEventToken":   false,
		"withBirdwatchNotes":     false,
		"withVoice":              true,
	}
	if cursor != "" {
		vars["cursor"] = cursor
	}
	variables, _ := json.Marshal(vars)
	return buildURL(c.baseURL, userMediaPath, string(variables),
		userMediaFeatures, `{"withArticlePlainText":false}`)
}
