package workbench

func isWordChar(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// WordAt returns the maximal run of letters, digits and underscores that
// covers col. It fails when col is outside the line or the character at
// col is not part of a word.
func WordAt(line string, col int) (string, bool) {
	runes := []rune(line)
	if col < 0 || col >= len(runes) || !isWordChar(runes[col]) {
		return "", false
	}
	start, end := col, col+1
	for start > 0 && isWordChar(runes[start-1]) {
		start--
	}
	for end < len(runes) && isWordChar(runes[end]) {
		end++
	}
	return string(runes[start:end]), true
}
