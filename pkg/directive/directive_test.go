package directive

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumOperation(arity int) Operation {
	return Func(arity, func(_ context.Context, args []string) (any, error) {
		total := 0
		for _, a := range args {
			n, err := strconv.Atoi(a)
			if err != nil {
				return nil, errors.Wrapf(err, "not a number: %s", a)
			}
			total += n
		}
		return total, nil
	})
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("  run\t@/add 2\n3  ")
	require.Len(t, tokens, 4)

	assert.Equal(t, Token{Text: "run", Offset: 2, Index: 0}, tokens[0])
	assert.Equal(t, Token{Text: "@/add", Offset: 6, Index: 1}, tokens[1])
	assert.Equal(t, Token{Text: "2", Offset: 12, Index: 2}, tokens[2])
	assert.Equal(t, Token{Text: "3", Offset: 14, Index: 3}, tokens[3])
	assert.Equal(t, 15, tokens[3].End())

	assert.Empty(t, Tokenize(" \n\t "))
}

func TestScan(t *testing.T) {
	segments := Scan("see @/read a.go b.go @/ls @/x/y z", DefaultPrefix)
	require.Len(t, segments, 4)

	lit, ok := segments[0].(Literal)
	require.True(t, ok)
	assert.Equal(t, "see", lit.Text)

	read, ok := segments[1].(*Directive)
	require.True(t, ok)
	assert.Equal(t, "/read", read.Operation)
	assert.Equal(t, []string{"a.go", "b.go"}, read.Args)
	assert.Equal(t, 1, read.SourceIndex)

	ls, ok := segments[2].(*Directive)
	require.True(t, ok)
	assert.Equal(t, "/ls", ls.Operation)
	assert.Empty(t, ls.Args, "an adjacent marker ends the previous argument list")
	assert.Equal(t, 4, ls.SourceIndex)

	nested, ok := segments[3].(*Directive)
	require.True(t, ok)
	assert.Equal(t, "/x/y", nested.Operation)
	assert.Equal(t, []string{"z"}, nested.Args)
}

func TestScan_PrefixAloneIsLiteral(t *testing.T) {
	segments := Scan("just @/ here", DefaultPrefix)
	require.Len(t, segments, 3)
	for _, seg := range segments {
		_, ok := seg.(Literal)
		assert.True(t, ok)
	}
}

func TestScan_CustomPrefix(t *testing.T) {
	ds := Directives("call !sum 1 2", "!")
	require.Len(t, ds, 1)
	assert.Equal(t, "/sum", ds[0].Operation)
	assert.Equal(t, []string{"1", "2"}, ds[0].Args)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "/add", NormalizeName("add"))
	assert.Equal(t, "/add", NormalizeName("/add"))
	assert.Equal(t, "/dev/tool", NormalizeName("dev/tool"))
}

func TestExpand_FixedArity(t *testing.T) {
	table := MapTable{"/add": sumOperation(2)}

	exp, err := NewScanner().Expand(context.Background(), "run @/add 2 3 please", table)
	require.NoError(t, err)

	assert.Equal(t, "run @/add 2 3 --> 5 please", exp.Text)
	assert.Contains(t, exp.Text, "2 3 --> 5")
	assert.Less(t, strings.Index(exp.Text, "2 3 --> 5"), strings.Index(exp.Text, "please"))

	require.Len(t, exp.Directives, 1)
	d := exp.Directives[0]
	assert.Equal(t, "/add", d.Operation)
	assert.Equal(t, []string{"2", "3"}, d.Args)
	assert.Equal(t, "5", d.Result)
	assert.Equal(t, 1, d.SourceIndex)
}

func TestExpand_VariadicTakesUntilNextMarker(t *testing.T) {
	table := MapTable{
		"sum":  sumOperation(Variadic),
		"/two": sumOperation(2),
	}

	exp, err := NewScanner().Expand(context.Background(), "a @/sum 1 2 3 @/two 4 5 6 end", table)
	require.NoError(t, err)

	assert.Equal(t, "a @/sum 1 2 3 --> 6 @/two 4 5 --> 9 6 end", exp.Text)
	require.Len(t, exp.Directives, 2)
	assert.Equal(t, []string{"1", "2", "3"}, exp.Directives[0].Args)
	assert.Equal(t, []string{"4", "5"}, exp.Directives[1].Args)
}

func TestExpand_AdjacentMarkersGiveZeroArguments(t *testing.T) {
	var seen [][]string
	record := Func(Variadic, func(_ context.Context, args []string) (any, error) {
		seen = append(seen, args)
		return len(args), nil
	})

	exp, err := NewScanner().Expand(context.Background(), "@/count @/count x y", MapTable{"/count": record})
	require.NoError(t, err)

	assert.Equal(t, "@/count --> 0 @/count x y --> 2", exp.Text)
	require.Len(t, seen, 2)
	assert.Empty(t, seen[0])
	assert.Equal(t, []string{"x", "y"}, seen[1])
}

func TestExpand_PreservesWhitespace(t *testing.T) {
	table := MapTable{"/echo": Func(1, func(_ context.Context, args []string) (any, error) {
		return strings.ToUpper(args[0]), nil
	})}

	exp, err := NewScanner().Expand(context.Background(), "line one\n\t@/echo hi\nline three", table)
	require.NoError(t, err)
	assert.Equal(t, "line one\n\t@/echo hi --> HI\nline three", exp.Text)
}

func TestExpand_ResultsAreNotRescanned(t *testing.T) {
	table := MapTable{
		"/emit": Func(0, func(context.Context, []string) (any, error) {
			return "@/boom", nil
		}),
	}

	exp, err := NewScanner().Expand(context.Background(), "@/emit", table)
	require.NoError(t, err)
	assert.Equal(t, "@/emit --> @/boom", exp.Text)
	assert.Len(t, exp.Directives, 1)
}

func TestExpand_LaterDirectiveDoesNotSeeEarlierResult(t *testing.T) {
	var secondArgs []string
	table := MapTable{
		"/first": Func(0, func(context.Context, []string) (any, error) { return "one", nil }),
		"/second": Func(Variadic, func(_ context.Context, args []string) (any, error) {
			secondArgs = args
			return "two", nil
		}),
	}

	exp, err := NewScanner().Expand(context.Background(), "@/first @/second tail", table)
	require.NoError(t, err)
	assert.Equal(t, []string{"tail"}, secondArgs)
	assert.Equal(t, "@/first --> one @/second tail --> two", exp.Text)
}

func TestExpand_UnknownOperation(t *testing.T) {
	_, err := NewScanner().Expand(context.Background(), "x @/nope 1", MapTable{})
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrUnknownOperation))
	var unknown *UnknownOperationError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "@/nope", unknown.Token)
	assert.Equal(t, "/nope", unknown.Operation)
	assert.Equal(t, 1, unknown.Index)
	assert.Contains(t, err.Error(), "@/nope")
}

func TestExpand_SkipUnknown(t *testing.T) {
	table := MapTable{"/add": sumOperation(2)}

	exp, err := NewScanner(WithSkipUnknown(true)).Expand(context.Background(), "@/nope 1 @/add 1 1", table)
	require.NoError(t, err)
	assert.Equal(t, "@/nope 1 @/add 1 1 --> 2", exp.Text)
	require.Len(t, exp.Directives, 2)
	assert.True(t, exp.Directives[0].Skipped)
	assert.False(t, exp.Directives[1].Skipped)
}

func TestExpand_OperationError(t *testing.T) {
	table := MapTable{"/add": sumOperation(2)}

	_, err := NewScanner().Expand(context.Background(), "@/add one two", table)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directive /add failed")
	assert.Contains(t, err.Error(), "not a number: one")
}

func TestExpand_NoDirectives(t *testing.T) {
	text := "  plain text\nwith  spacing "
	exp, err := NewScanner().Expand(context.Background(), text, MapTable{})
	require.NoError(t, err)
	assert.Equal(t, text, exp.Text)
	assert.Empty(t, exp.Directives)
}

func TestExpand_CustomPrefix(t *testing.T) {
	s := NewScanner(WithPrefix("#!"))
	assert.Equal(t, "#!", s.Prefix())

	exp, err := s.Expand(context.Background(), "#!add 4 4 @/add 1 1", MapTable{"/add": sumOperation(2)})
	require.NoError(t, err)
	assert.Equal(t, "#!add 4 4 --> 8 @/add 1 1", exp.Text)
}

func TestMapTable_Lookup(t *testing.T) {
	op := sumOperation(1)
	table := MapTable{"plain": op, "/slashed": op}

	_, ok := table.Lookup("/plain")
	assert.True(t, ok)
	_, ok = table.Lookup("plain")
	assert.True(t, ok)
	_, ok = table.Lookup("slashed")
	assert.True(t, ok)
	_, ok = table.Lookup("/missing")
	assert.False(t, ok)
	_, ok = table.Lookup("")
	assert.False(t, ok)
}
