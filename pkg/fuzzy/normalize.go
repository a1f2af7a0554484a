// Package fuzzy provides title/artist normalization and similarity scoring
// for matching externally sourced track metadata against catalog search
// results.
package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	featRegex       = regexp.MustCompile(`(?i)\s*[\(\[]?\s*(?:feat\.?|ft\.?|featuring)\s+[^\)\]]*[\)\]]?\s*`)
	versionRegex    = regexp.MustCompile(`(?i)\s*[\(\[]\s*(remaster|remastered|deluxe|extended|radio edit|live|mono|stereo|clean|explicit)[^\)\]]*[\)\]]\s*`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NormalizeTitle strips featuring credits and edition markers so that the
// same recording compares equal across providers.
func (n *Normalizer) NormalizeTitle(title string) string {
	// Bracketed markers must go before basicNormalize eats the brackets.
	title = featRegex.ReplaceAllString(title, " ")
	title = versionRegex.ReplaceAllString(title, " ")
	return n.basicNormalize(title)
}

func (n *Normalizer) NormalizeArtist(artist string) string {
	artist = n.basicNormalize(artist)
	artist = strings.ReplaceAll(artist, " and ", " & ")
	return artist
}

func (n *Normalizer) basicNormalize(text string) string {
	// Decompose and drop combining marks so accented names match their
	// ASCII spellings.
	text = norm.NFKD.String(text)

	var b strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			b.WriteRune(r)
		}
	}
	text = b.String()

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")

	return strings.TrimSpace(strings.ToLower(text))
}

// CalculateSimilarity returns a score in [0,1] based on the longest common
// subsequence of the two strings.
func (n *Normalizer) CalculateSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	longer := len(s1)
	if len(s2) > longer {
		longer = len(s2)
	}

	return float64(n.longestCommonSubsequence(s1, s2)) / float64(longer)
}

func (n *Normalizer) longestCommonSubsequence(s1, s2 string) int {
	m, l := len(s1), len(s2)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, l+1)
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= l; j++ {
			if s1[i-1] == s2[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] > dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	return dp[m][l]
}
