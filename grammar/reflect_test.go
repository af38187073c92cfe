package grammar

import "testing"

type person struct {
	Name string   `json:"name"`
	Age  int      `json:"age,omitempty"`
	Tags []string `json:"tags"`
}

func TestFromType(t *testing.T) {
	src, err := FromType[person]()
	if err != nil {
		t.Fatal(err)
	}

	g, err := Compile("person", src)
	if err != nil {
		t.Fatalf("%v\n%s", err, src)
	}

	for _, s := range []string{`{"name":"a","tags":[]}`, `{"name":"a","age":3,"tags":["x","y"]}`} {
		if !g.Match([]byte(s)) {
			t.Errorf("expected %s to match\n%s", s, src)
		}
	}

	for _, s := range []string{`{"name":"a"}`, `{"name":1,"tags":[]}`, `{"tags":[],"name":"a"}`} {
		if g.Match([]byte(s)) {
			t.Errorf("expected %s not to match\n%s", s, src)
		}
	}
}
