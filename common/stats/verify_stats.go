package stats

import (
	"bytes"
	"fmt"
	"testing"
)

/*
Utilities for validating the stats registry contents from tests.
*/
type RuleChecker struct {
	name    string
	checker func(got, expected interface{}) bool
}

func nilCheck(a, b interface{}) (nilFound, eqValues bool) {
	if b == nil && a == nil {
		return true, true
	} else if b == nil || a == nil {
		return true, false
	}
	return false, false
}

/*
errors if a is not int64, returns true if a == b
*/
func int64EqTest(a, b interface{}) bool {
	if nilFound, eqValue := nilCheck(a, b); nilFound {
		return eqValue
	}
	aint, ok := a.(int64)
	if !ok {
		return false
	}
	return aint == int64(b.(int))
}

var Int64EqTest = RuleChecker{name: "Int64EqTest", checker: int64EqTest}

/*
returns true if a >= b, both ints as in Int64EqTest
*/
func int64GTETest(a, b interface{}) bool {
	if nilFound, eqValue := nilCheck(a, b); nilFound {
		return eqValue
	}
	aint, ok := a.(int64)
	if !ok {
		return false
	}
	return aint >= int64(b.(int))
}

var Int64GTETest = RuleChecker{name: "Int64GTETest", checker: int64GTETest}

func doesNotExistTest(a, b interface{}) bool {
	return a == nil
}

var DoesNotExistTest = RuleChecker{name: "DoesNotExistTest", checker: doesNotExistTest}

/*
Each Checker(a, b) expects a to be the 'got' value and b the 'expected' value.
*/
type Rule struct {
	Checker RuleChecker
	Value   interface{}
}

/*
Verify that the registry holds, for every key in contains, a value that passes
the associated rule. Only finagle registries can be verified.
*/
func VerifyStats(tag string, statsRegistry StatsRegistry, t *testing.T, contains map[string]Rule) {
	t.Helper()
	reg, ok := statsRegistry.(*finagleStatsRegistry)
	if !ok {
		t.Errorf("%s: VerifyStats needs a finagle registry, got %T", tag, statsRegistry)
		return
	}

	failed := false
	var msg bytes.Buffer
	msg.WriteString(tag)
	msg.WriteString(": stats registry error:\n")

	asJson := reg.MarshalAll()
	for key, rule := range contains {
		got := asJson[key]
		if rule.Checker.checker(got, rule.Value) {
			continue
		}
		failed = true
		if rule.Checker.name == DoesNotExistTest.name {
			fmt.Fprintf(&msg, "%s: found stat entry when there should not be one\n", key)
		} else {
			fmt.Fprintf(&msg, "%s: got %v, expected to pass %s with %v\n", key, got, rule.Checker.name, rule.Value)
		}
	}
	if failed {
		pretty, _ := reg.MarshalJSONPretty()
		t.Errorf("%s%s\n", msg.String(), pretty)
	}
}
