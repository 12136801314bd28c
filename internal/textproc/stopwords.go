package textproc

// englishStopwords holds high-frequency English words that carry little
// meaning on their own. Entries are lower-case and unstemmed.
var englishStopwords = toSet([]string{
	"a", "about", "after", "all", "also", "am", "an", "and", "another", "any",
	"are", "as", "at", "be", "because", "been", "before", "being", "between",
	"both", "but", "by", "came", "can", "come", "could", "did", "do", "does",
	"each", "else", "for", "from", "get", "got", "had", "has", "have", "he",
	"her", "here", "him", "himself", "his", "how", "i", "if", "in", "into",
	"is", "it", "its", "just", "like", "make", "many", "me", "might", "more",
	"most", "much", "must", "my", "never", "no", "nor", "not", "now", "of",
	"off", "on", "only", "or", "other", "our", "out", "over", "own", "said",
	"same", "see", "she", "should", "since", "so", "some", "still", "such",
	"take", "than", "that", "the", "their", "them", "then", "there", "these",
	"they", "this", "those", "through", "to", "too", "under", "up", "us",
	"very", "was", "way", "we", "well", "were", "what", "when", "where",
	"which", "while", "who", "why", "will", "with", "would", "you", "your",
})

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
