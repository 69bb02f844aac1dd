package event

// DefaultVariants returns the built-in event types in classification order
func DefaultVariants() []Variant {
	return []Variant{
		newStreamlabsDonation(),
		newCharityDonation(),
		newMerch(),
		newTwitchFollow(),
		newTwitchSubscription(),
		newTwitchBits(),
		newTwitchRaid(),
		newTwitchHost(),
		newYouTubeSubscription(),
		newYouTubeMembership(),
		newYouTubeSuperchat(),
		newKickFollow(),
		newKickSubscription(),
	}
}

func newStreamlabsDonation() Variant {
	return newDonation("streamlabs_donation", "donation", PlatformStreamlabs,
		"{user} donated {formatted_amount}!")
}

func newCharityDonation() Variant {
	return newDonation("streamlabs_charity_donation", "streamlabscharitydonation", PlatformStreamlabs,
		"{user} donated {formatted_amount} to charity!")
}

func newMerch() Variant {
	b := newBase("streamlabs_merch", "merch", PlatformStreamlabs, "{user} bought {product}!")
	b.AddPlaceholder("product", field("product"))
	b.AddPlaceholder("message", field("message"))
	return b
}

func newTwitchFollow() Variant {
	return newBase("twitch_follow", "follow", PlatformTwitch, "{user} is now following!")
}

func newTwitchSubscription() Variant {
	b := newBase("twitch_subscription", "subscription", PlatformTwitch,
		"{user} subscribed for {months} months!")
	b.AddPlaceholder("months", valueOr("months", "1"))
	b.AddPlaceholder("streak_months", valueOr("streak_months", "0"))
	b.AddPlaceholder("sub_plan", field("sub_plan"))
	b.AddPlaceholder("message", field("message"))
	return b
}

func newTwitchBits() Variant {
	d := newDonation("twitch_bits", "bits", PlatformTwitch, "{user} cheered {amount} bits!")
	d.currency = func(Payload) string { return "bits" }
	return d
}

func newTwitchRaid() Variant {
	b := newBase("twitch_raid", "raid", PlatformTwitch, "{user} raided with {raiders} viewers!")
	b.AddPlaceholder("raiders", valueOr("raiders", "0"))
	return b
}

func newTwitchHost() Variant {
	b := newBase("twitch_host", "host", PlatformTwitch, "{user} is hosting with {viewers} viewers!")
	b.AddPlaceholder("viewers", valueOr("viewers", "0"))
	return b
}

func newYouTubeSubscription() Variant {
	return newBase("youtube_subscription", "follow", PlatformYouTube, "{user} subscribed on YouTube!")
}

func newYouTubeMembership() Variant {
	b := newBase("youtube_membership", "subscription", PlatformYouTube,
		"{user} became a member for {months} months!")
	b.AddPlaceholder("months", valueOr("months", "1"))
	return b
}

// superchat amounts arrive in micros
func newYouTubeSuperchat() Variant {
	d := newDonation("youtube_superchat", "superchat", PlatformYouTube,
		"{user} sent a superchat of {formatted_amount}!")
	d.amount = func(p Payload) float64 {
		micros, _ := p.Float("amount")
		return micros / 1e6
	}
	d.formatted = func(p Payload) string {
		if p.Has("displayString") {
			return p.String("displayString")
		}
		return FormatNumber(d.Amount(p)) + " " + d.Currency(p)
	}
	d.AddPlaceholder("message", field("comment"))
	return d
}

func newKickFollow() Variant {
	return newBase("kick_follow", "follow", PlatformKick, "{user} is now following on Kick!")
}

func newKickSubscription() Variant {
	b := newBase("kick_subscription", "subscription", PlatformKick,
		"{user} subscribed on Kick for {months} months!")
	b.AddPlaceholder("months", valueOr("months", "1"))
	return b
}
