package parsehub

// A Platform identifies where a post came from. It tags ParseResult values and
// drives nothing inside the core; adapters declare one, consumers display it.
type Platform struct {
	// ID is the stable machine-readable identifier.
	ID string
	// Name is the human-readable display name.
	Name string
}

func (p Platform) String() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// The closed set of known platforms.
var (
	PlatformBilibili  = Platform{ID: "bilibili", Name: "Bilibili"}
	PlatformCoolapk   = Platform{ID: "coolapk", Name: "Coolapk"}
	PlatformDouyin    = Platform{ID: "douyin", Name: "Douyin|TikTok"}
	PlatformFacebook  = Platform{ID: "facebook", Name: "Facebook"}
	PlatformInstagram = Platform{ID: "instagram", Name: "Instagram"}
	PlatformKuaishou  = Platform{ID: "kuaishou", Name: "Kuaishou"}
	PlatformPipix     = Platform{ID: "pipix", Name: "Pipix"}
	PlatformThreads   = Platform{ID: "threads", Name: "Threads"}
	PlatformTieba     = Platform{ID: "tieba", Name: "Tieba"}
	PlatformTwitter   = Platform{ID: "twitter", Name: "Twitter"}
	PlatformWeibo     = Platform{ID: "weibo", Name: "Weibo"}
	PlatformWeixin    = Platform{ID: "weixin", Name: "Weixin"}
	PlatformXHS       = Platform{ID: "xhs", Name: "Xiaohongshu"}
	PlatformXiaoheihe = Platform{ID: "xiaoheihe", Name: "Xiaoheihe"}
	PlatformYoutube   = Platform{ID: "youtube", Name: "YouTube"}
	PlatformZuiyou    = Platform{ID: "zuiyou", Name: "Zuiyou"}
	// PlatformDirect is the generic fallback for direct media file URLs.
	PlatformDirect = Platform{ID: "direct", Name: "Direct link"}
)
