package sign

// DefaultKey is the lookup key of the idle avatar asset.
const DefaultKey = "default"

// IdleAsset is the full-body idle animation shown when nothing else matches.
const IdleAsset = "/signs/full-body/avatar-idle.gif"

// Asset maps a normalized phrase to the animation that signs it.
type Asset struct {
	Key      string `json:"key"`
	AssetRef string `json:"assetRef"`
}

// Seed provides the phrases the demo avatar can sign.
func Seed() []Asset {
	return []Asset{
		{Key: "hello", AssetRef: "/signs/hello.gif"},
		{Key: "how are you", AssetRef: "/signs/how-are-you.gif"},
		{Key: "thank you", AssetRef: "/signs/thank-you.gif"},
		{Key: "yes", AssetRef: "/signs/yes.gif"},
		{Key: "no", AssetRef: "/signs/no.gif"},
		{Key: "help", AssetRef: "/signs/help.gif"},
		{Key: "goodbye", AssetRef: "/signs/goodbye.gif"},
		{Key: "hello, how are you today", AssetRef: "/signs/full-body/greeting.gif"},
		{Key: "hi there! how can i help you today", AssetRef: "/signs/full-body/greeting-help.gif"},
		{Key: "i understand. could you tell me more about your needs?", AssetRef: "/signs/full-body/understand.gif"},
		{Key: "that's interesting. let me check what options we have.", AssetRef: "/signs/full-body/interesting.gif"},
		{Key: "i think we can definitely assist with that.", AssetRef: "/signs/full-body/assist.gif"},
		{Key: DefaultKey, AssetRef: IdleAsset},
	}
}
