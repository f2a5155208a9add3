package parser

// levenshteinDistance 按 rune 计算编辑距离
func levenshteinDistance(a, b string) int {
	ar := []rune(a)
	br := []rune(b)
	if string(ar) == string(br) {
		return 0
	}
	if len(ar) < len(br) {
		ar, br = br, ar
	}
	if len(br) == 0 {
		return len(ar)
	}
	prev := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}
	for i, ca := range ar {
		curr := make([]int, len(br)+1)
		curr[0] = i + 1
		for j, cb := range br {
			ins := curr[j] + 1
			del := prev[j+1] + 1
			sub := prev[j]
			if ca != cb {
				sub++
			}
			curr[j+1] = min(ins, del, sub)
		}
		prev = curr
	}
	return prev[len(prev)-1]
}

// LevenshteinSimilarity 1 - 距离/较长串长度
func LevenshteinSimilarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshteinDistance(a, b))/float64(longest)
}

// TokenJaccard 词集合 Jaccard 系数
func TokenJaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	aSet := make(map[string]struct{}, len(a))
	for _, t := range a {
		aSet[t] = struct{}{}
	}
	bSet := make(map[string]struct{}, len(b))
	for _, t := range b {
		bSet[t] = struct{}{}
	}
	inter := 0
	for t := range aSet {
		if _, ok := bSet[t]; ok {
			inter++
		}
	}
	union := len(aSet) + len(bSet) - inter
	return float64(inter) / float64(union)
}

// HeaderSimilarity 规范化文本之间的模糊相似度：max(编辑距离相似度, 词 Jaccard)
func HeaderSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	seq := LevenshteinSimilarity(a, b)
	jacc := TokenJaccard(splitTokens(a), splitTokens(b))
	if seq > jacc {
		return seq
	}
	return jacc
}
