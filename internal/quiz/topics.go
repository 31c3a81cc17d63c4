package quiz

import "github.com/orsinium-labs/enum"

// Topic is a quiz subject offered in the topic menu.
type Topic enum.Member[string]

var (
	History   = Topic{"History"}
	Science   = Topic{"Science"}
	Geography = Topic{"Geography"}
	Art       = Topic{"Art"}
	Sports    = Topic{"Sports"}

	// Topics lists the menu in display order.
	Topics = enum.New(History, Science, Geography, Art, Sports)
)

// ParseTopic resolves a callback key to a topic.
func ParseTopic(key string) (Topic, bool) {
	t := Topics.Parse(key)
	if t == nil {
		return Topic{}, false
	}
	return *t, true
}
