package capability

// Well-known identifiers.
var (
	Voice          = FromShort(0x1341)
	DirectPlay     = FromShort(0x1342)
	SendFile       = FromShort(0x1343)
	ICQDirect      = FromShort(0x1344)
	DirectIM       = FromShort(0x1345)
	BuddyIcon      = FromShort(0x1346)
	AddIns         = FromShort(0x1347)
	GetFile        = FromShort(0x1348)
	ICQServerRelay = FromShort(0x1349)
	Games          = FromShort(0x134a)
	SendBuddyList  = FromShort(0x134b)
	UTF8           = FromShort(0x134e)
	ShortCaps      = FromShort(0x0000)

	// Chat does not fit the compact template.
	Chat = MustParseString("748f2420-6287-11d1-8222-444553540000")
)

var names = map[Capability]string{
	Voice:          "voice",
	DirectPlay:     "direct-play",
	SendFile:       "send-file",
	ICQDirect:      "icq-direct",
	DirectIM:       "direct-im",
	BuddyIcon:      "buddy-icon",
	AddIns:         "add-ins",
	GetFile:        "get-file",
	ICQServerRelay: "icq-server-relay",
	Games:          "games",
	SendBuddyList:  "send-buddy-list",
	UTF8:           "utf8",
	ShortCaps:      "short-caps",
	Chat:           "chat",
}
