// Marble diagrams for reactivex tests
// 弹珠图：用字符串描述虚拟时间上的通知序列
//
// 语法：
//
//	'-'    空帧
//	'|'    完成
//	'#'    错误
//	'^'    订阅时刻（仅热序列和期望结果）
//	(a,b)  同一时刻的一组通知，不含逗号时每个字符是一个元素
//	其他   值元素，连续的非保留字符组成一个元素，占用与长度相同的帧数
//
// 空白字符被忽略。
package rxtest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/xinjiayu/reactivex"
)

// DefaultFrame 每帧的默认tick数
const DefaultFrame int64 = 10

var (
	// ErrMarble 弹珠图中#在没有指定错误时使用的错误
	ErrMarble = errors.New("error")

	// ErrInvalidMarbles 弹珠图语法错误
	ErrInvalidMarbles = errors.New("invalid marble diagram")
)

// ============================================================================
// 选项
// ============================================================================

type marbleConfig struct {
	frame int64
	shift int64
}

// MarbleOption 弹珠图解析选项
type MarbleOption func(*marbleConfig)

// WithFrame 设置每帧的tick数
func WithFrame(ticks int64) MarbleOption {
	return func(c *marbleConfig) {
		if ticks > 0 {
			c.frame = ticks
		}
	}
}

// WithTimeShift 设置第0帧（或^所在帧）对应的tick
func WithTimeShift(ticks int64) MarbleOption {
	return func(c *marbleConfig) {
		c.shift = ticks
	}
}

func newMarbleConfig(shift int64, options []MarbleOption) *marbleConfig {
	c := &marbleConfig{frame: DefaultFrame, shift: shift}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// ============================================================================
// 解析
// ============================================================================

type marbleEvent[T any] struct {
	frame        int64
	notification reactivex.Notification[T]
}

type marbleParser[T any] struct {
	lookup  map[string]T
	err     error
	events  []marbleEvent[T]
	stopped bool
}

// ParseMarbles 把弹珠图解析为记录的通知。值元素先在lookup中查找，
// 找不到时按T转换字面量：string原样使用，数值类型按数字解析，any依次尝试整数、浮点数和字符串。
// err为nil时#使用ErrMarble。
func ParseMarbles[T any](marbles string, lookup map[string]T, err error, options ...MarbleOption) ([]Recorded[T], error) {
	config := newMarbleConfig(0, options)
	messages, _, perr := parseMarbles(marbles, lookup, err, config)
	return messages, perr
}

// parseMarbles 返回通知和^所在的帧，没有^时为-1
func parseMarbles[T any](marbles string, lookup map[string]T, err error, config *marbleConfig) ([]Recorded[T], int64, error) {
	if err == nil {
		err = ErrMarble
	}
	p := &marbleParser[T]{lookup: lookup, err: err}

	s := []rune(strings.Join(strings.Fields(marbles), ""))
	var iframe int64
	subscribeFrame := int64(-1)

	for i := 0; i < len(s); {
		switch c := s[i]; c {
		case '-':
			iframe++
			i++
		case '^':
			if subscribeFrame >= 0 {
				return nil, -1, errors.Wrapf(ErrInvalidMarbles, "duplicate subscription point at %d", i)
			}
			subscribeFrame = iframe
			iframe++
			i++
		case ',':
			return nil, -1, errors.Wrapf(ErrInvalidMarbles, "comma outside group at %d", i)
		case ')':
			return nil, -1, errors.Wrapf(ErrInvalidMarbles, "unmatched ')' at %d", i)
		case '(':
			end := indexRune(s[i:], ')')
			if end < 0 {
				return nil, -1, errors.Wrapf(ErrInvalidMarbles, "unclosed group at %d", i)
			}
			for _, element := range splitGroup(s[i+1 : i+end]) {
				if err := p.add(element, iframe); err != nil {
					return nil, -1, err
				}
			}
			iframe += int64(end + 1)
			i += end + 1
		case '|', '#':
			if err := p.add(string(c), iframe); err != nil {
				return nil, -1, err
			}
			iframe++
			i++
		default:
			j := i
			for j < len(s) && !isReserved(s[j]) {
				j++
			}
			if err := p.add(string(s[i:j]), iframe); err != nil {
				return nil, -1, err
			}
			iframe += int64(j - i)
			i = j
		}
	}

	origin := subscribeFrame
	if origin < 0 {
		origin = 0
	}
	messages := make([]Recorded[T], 0, len(p.events))
	for _, e := range p.events {
		messages = append(messages, Recorded[T]{
			Time:  config.shift + (e.frame-origin)*config.frame,
			Value: e.notification,
		})
	}
	return messages, subscribeFrame, nil
}

// add 解析一个元素
func (p *marbleParser[T]) add(element string, frame int64) error {
	if element == "" || element == "," {
		return nil
	}
	if p.stopped {
		return errors.Wrapf(ErrInvalidMarbles, "element %q after termination", element)
	}

	var n reactivex.Notification[T]
	switch element {
	case "|":
		n = reactivex.CompletedNotification[T]()
		p.stopped = true
	case "#":
		n = reactivex.ErrorNotification[T](p.err)
		p.stopped = true
	default:
		value, err := marbleValue(element, p.lookup)
		if err != nil {
			return err
		}
		n = reactivex.NextNotification(value)
	}
	p.events = append(p.events, marbleEvent[T]{frame: frame, notification: n})
	return nil
}

// marbleValue 把元素转换为值
func marbleValue[T any](element string, lookup map[string]T) (T, error) {
	if v, ok := lookup[element]; ok {
		return v, nil
	}

	var v T
	var err error
	switch p := any(&v).(type) {
	case *string:
		*p = element
	case *int:
		*p, err = strconv.Atoi(element)
	case *int64:
		*p, err = strconv.ParseInt(element, 10, 64)
	case *float64:
		*p, err = strconv.ParseFloat(element, 64)
	case *any:
		*p = literal(element)
	default:
		return v, errors.Wrapf(ErrInvalidMarbles, "no value for element %q", element)
	}
	if err != nil {
		return v, errors.Wrapf(ErrInvalidMarbles, "element %q: %v", element, err)
	}
	return v, nil
}

// literal 依次尝试整数、浮点数，否则返回字符串
func literal(element string) any {
	if n, err := strconv.Atoi(element); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(element, 64); err == nil {
		return f
	}
	return element
}

func splitGroup(group []rune) []string {
	text := string(group)
	if strings.ContainsRune(text, ',') {
		return strings.Split(text, ",")
	}
	elements := make([]string, 0, len(group))
	for _, r := range group {
		elements = append(elements, string(r))
	}
	return elements
}

func isReserved(r rune) bool {
	return strings.ContainsRune("-^,()|#", r)
}

func indexRune(s []rune, r rune) int {
	for i, c := range s {
		if c == r {
			return i
		}
	}
	return -1
}

// ============================================================================
// 构造
// ============================================================================

// Hot 从弹珠图创建热序列。有^时^对应Subscribed，否则第0帧对应Subscribed；弹珠图无效时panic
func Hot[T any](s *TestScheduler, marbles string, lookup map[string]T, err error, options ...MarbleOption) *HotObservable[T] {
	config := newMarbleConfig(Subscribed, options)
	messages, _, perr := parseMarbles(marbles, lookup, err, config)
	if perr != nil {
		panic(perr)
	}
	return CreateHotObservable(s, messages...)
}

// Cold 从弹珠图创建冷序列，第0帧对应订阅时刻；弹珠图无效或含^时panic
func Cold[T any](s *TestScheduler, marbles string, lookup map[string]T, err error, options ...MarbleOption) *ColdObservable[T] {
	config := newMarbleConfig(0, options)
	messages, subscribeFrame, perr := parseMarbles(marbles, lookup, err, config)
	if perr != nil {
		panic(perr)
	}
	if subscribeFrame >= 0 {
		panic(errors.Wrap(ErrInvalidMarbles, "cold observable cannot have a subscription point"))
	}
	return CreateColdObservable(s, messages...)
}

// ExpectedMessages 解析期望结果，第0帧（或^）对应Subscribed；弹珠图无效时panic
func ExpectedMessages[T any](marbles string, lookup map[string]T, err error, options ...MarbleOption) []Recorded[T] {
	config := newMarbleConfig(Subscribed, options)
	messages, _, perr := parseMarbles(marbles, lookup, err, config)
	if perr != nil {
		panic(perr)
	}
	return messages
}

// ============================================================================
// 输出
// ============================================================================

// ToMarbles 把记录的通知格式化为弹珠图，第0帧对应WithTimeShift指定的tick。
// 同一时刻的多个通知输出为组；早于第0帧的通知放在第0帧。
func ToMarbles[T any](messages []Recorded[T], options ...MarbleOption) string {
	config := newMarbleConfig(0, options)

	var b strings.Builder
	var iframe int64
	for i := 0; i < len(messages); {
		j := i
		for j < len(messages) && messages[j].Time == messages[i].Time {
			j++
		}

		target := (messages[i].Time - config.shift) / config.frame
		for ; iframe < target; iframe++ {
			b.WriteByte('-')
		}

		tokens := make([]string, 0, j-i)
		for _, m := range messages[i:j] {
			tokens = append(tokens, marbleToken(m.Value))
		}
		token := tokens[0]
		if len(tokens) > 1 {
			token = "(" + strings.Join(tokens, ",") + ")"
		}
		b.WriteString(token)
		iframe += int64(len([]rune(token)))

		i = j
	}
	return b.String()
}

func marbleToken[T any](n reactivex.Notification[T]) string {
	switch n.Kind {
	case reactivex.KindError:
		return "#"
	case reactivex.KindCompleted:
		return "|"
	default:
		return fmt.Sprint(n.Value)
	}
}
