package geoutil

// Anonymous nickname pools. A device always resolves to the same pair.
var (
	nickModifiers = []string{
		"잠들지 않는", "예리한", "빛나는", "뜨거운", "조용한",
		"날카로운", "끈질긴", "재빠른", "묵묵한", "감각적인",
		"냉정한", "열정적인", "은밀한", "대담한", "명석한",
	}
	nickAreas = []string{
		"범어동", "신곡동", "역삼동", "홍대", "강남",
		"을지로", "성수동", "이태원", "해운대", "서면",
		"둔산동", "봉선동", "수성구", "연남동", "망원동",
	}
)

// Nickname derives the anonymous display name of a device from its
// identifier. An empty identifier resolves to the bare anonymous label.
func Nickname(deviceID string) string {
	if deviceID == "" {
		return "익명"
	}

	h := Hash(deviceID)
	if h < 0 {
		h = -h
	}
	return nickModifiers[int(h)%len(nickModifiers)] + " " + nickAreas[int(h>>8)%len(nickAreas)]
}
