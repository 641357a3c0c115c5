package mask_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/rise-and-shine/errnotify/mask"
)

func keys(om *orderedmap.OrderedMap[string, any]) []string {
	var out []string
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

func TestFilter(t *testing.T) {
	tabs := map[string]map[string]any{
		"user": {
			"name":          "john",
			"password":      "hunter2",
			"Password_hash": "abc",
		},
		"request": {
			"headers": map[string]any{
				"Authorization": "Bearer x",
				"Accept":        "json",
			},
			"params": map[string]string{
				"api_key": "k",
				"page":    "2",
			},
		},
	}

	out := mask.Filter(tabs, []string{"password", "authorization", "API_KEY"})

	assert.Equal(t, "john", out["user"]["name"])
	assert.Equal(t, mask.Filtered, out["user"]["password"])
	assert.Equal(t, mask.Filtered, out["user"]["Password_hash"])

	headers, ok := out["request"]["headers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, mask.Filtered, headers["Authorization"])
	assert.Equal(t, "json", headers["Accept"])

	params, ok := out["request"]["params"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, mask.Filtered, params["api_key"])
	assert.Equal(t, "2", params["page"])

	// input untouched
	assert.Equal(t, "hunter2", tabs["user"]["password"])
}

func TestFilterNilAndEmptyFilters(t *testing.T) {
	assert.Nil(t, mask.Filter(nil, []string{"password"}))

	tabs := map[string]map[string]any{"a": {"password": "x"}}
	assert.Equal(t, "x", mask.Filter(tabs, nil)["a"]["password"])
	assert.Equal(t, "x", mask.Filter(tabs, []string{""})["a"]["password"])
}

func TestFilterStructValue(t *testing.T) {
	type Credentials struct {
		Login  string `json:"login"`
		Secret string `json:"secret" mask:"true"`
		Token  string `json:"token"`
	}

	tabs := map[string]map[string]any{
		"auth": {"creds": Credentials{Login: "bob", Secret: "s3", Token: "t"}},
	}

	out := mask.Filter(tabs, []string{"token"})
	om, ok := out["auth"]["creds"].(*orderedmap.OrderedMap[string, any])
	require.True(t, ok)

	assert.Equal(t, []string{"login", "secret", "token"}, keys(om))
	login, _ := om.Get("login")
	secret, _ := om.Get("secret")
	token, _ := om.Get("token")
	assert.Equal(t, "bob", login)
	assert.Equal(t, mask.Filtered, secret)
	assert.Equal(t, mask.Filtered, token)
}

func TestStructToOrdMap(t *testing.T) {
	type Inner struct {
		Key string `yaml:"key" mask:"TRUE"`
	}
	type Outer struct {
		Name     string
		Hidden   string `json:"-"`
		Inner    Inner  `json:"inner"`
		Optional *Inner `json:"optional"`
		Empty    string `json:"empty" mask:"true"`
		private  string
	}

	om := mask.StructToOrdMap(&Outer{Name: "n", Hidden: "h", Inner: Inner{Key: "k"}, private: "p"})
	require.NotNil(t, om)
	assert.Equal(t, []string{"Name", "inner", "optional", "empty"}, keys(om))

	inner, _ := om.Get("inner")
	innerMap, ok := inner.(*orderedmap.OrderedMap[string, any])
	require.True(t, ok)
	key, _ := innerMap.Get("key")
	assert.Equal(t, mask.Filtered, key)

	optional, _ := om.Get("optional")
	assert.Nil(t, optional)
	empty, _ := om.Get("empty")
	assert.Equal(t, "", empty)

	b, err := json.Marshal(om)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Name":"n","inner":{"key":"[FILTERED]"},"optional":null,"empty":""}`, string(b))
}

func TestStructToOrdMapNonStruct(t *testing.T) {
	assert.Nil(t, mask.StructToOrdMap(nil))
	assert.Nil(t, mask.StructToOrdMap(42))
	var p *struct{ A int }
	assert.Nil(t, mask.StructToOrdMap(p))
}

func TestMatches(t *testing.T) {
	assert.True(t, mask.Matches("X-Api-Key", []string{"api-key"}))
	assert.False(t, mask.Matches("username", []string{"password"}))
}
