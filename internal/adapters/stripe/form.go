package stripe

import (
	"net/url"
	"strconv"
)

// form builds the bracketed x-www-form-urlencoded bodies the provider expects
type form struct {
	values url.Values
}

func newForm() *form {
	return &form{values: url.Values{}}
}

func (f *form) set(key, value string) *form {
	if value != "" {
		f.values.Set(key, value)
	}
	return f
}

func (f *form) setInt(key string, value int64) *form {
	f.values.Set(key, strconv.FormatInt(value, 10))
	return f
}

func (f *form) setBool(key string, value bool) *form {
	f.values.Set(key, strconv.FormatBool(value))
	return f
}

func (f *form) metadata(m map[string]string) *form {
	for k, v := range m {
		f.values.Set("metadata["+k+"]", v)
	}
	return f
}

func (f *form) encode() string {
	return f.values.Encode()
}
