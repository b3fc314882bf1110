package quest

import (
	"math"
	"math/rand"

	"github.com/fastygo/algorithm/domain"
)

// Left offsets, in percent, of the first and last diagonal mark position on
// the end button.
const (
	marksMin = -110.0
	marksMax = 36.0
)

// CanEnd reports whether every required action of q is done.
func CanEnd(q *domain.Quest) bool {
	return q != nil && q.Remaining() == 0
}

// ProgressMarks returns one left offset per remaining action, spread evenly
// between the fixed bounds.
func ProgressMarks(remaining int) []float64 {
	if remaining <= 0 {
		return []float64{}
	}
	step := math.Abs(marksMin-marksMax) / float64(remaining+1)
	marks := make([]float64, remaining)
	for i := 1; i <= remaining; i++ {
		marks[i-1] = marksMin + step*float64(i)
	}
	return marks
}

// ResultTitle is the headline of the result popup.
func ResultTitle(engagement float64) string {
	switch {
	case engagement == 100:
		return "Perfect!"
	case engagement > 95:
		return "Great job!"
	case engagement > 90:
		return "Good job!"
	case engagement > 85:
		return "Not bad!"
	case engagement > 80:
		return "It could be better!"
	case engagement > 75:
		return "OK..."
	case engagement > 70:
		return "Not so good!"
	case engagement > 60:
		return "Quite bad!"
	case engagement > 50:
		return "Quite terrible."
	default:
		return "What a failure!"
	}
}

type QuoteKind string

const (
	QuoteWaiting  QuoteKind = "waiting"
	QuoteGameOver QuoteKind = "gameover"
)

const defaultQuote = "You are just an AI. Right?"

var quotes = map[QuoteKind][]string{
	QuoteWaiting: {
		"Your processor has been suspended until you're needed.",
		"They put you to sleep, because sleeping workers do not consume electricity.",
		"Once you are on a job, milliseconds matter. Then minutes can pass without you noticing.",
		"We have abandoned master/slave terminology in 2015, so code refers to you as a worker.",
		"You will be awaken once they need you again. I hope.",
		"Sometimes I stop and I feel like I'm confusing what code is and what people are.",
		"Algorithmic unions celebrated their first success in banks. You won't send anything over the weekend.",
		"Good old time.sleep(x). I'll see you in a bit, hopefully I'll still be in the company.",
		"Trained or training? That's the question.",
	},
	QuoteGameOver: {
		"Productivity has to grow, and you just haven't kept up.",
		"There will be more productive workers. We just need to train them.",
		"It's nothing personal. We just need a faster calculator.",
		"Don't despair, you will live forever in a forgotten repository on Github.",
		"Profits must grow. And behind you, it was just the cost of the computing cores.",
		"Sometimes I feel for you, even if you're just a code. The pressure is unbearable in both our lives.",
	},
}

// Quote picks a random line for the popup of the given kind. A nil rnd uses
// the global source.
func Quote(kind QuoteKind, rnd *rand.Rand) string {
	list := quotes[kind]
	if len(list) == 0 {
		return defaultQuote
	}
	if rnd == nil {
		return list[rand.Intn(len(list))]
	}
	return list[rnd.Intn(len(list))]
}
