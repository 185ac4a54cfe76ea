package utils

import (
	"crypto/md5"
	"encoding/hex"
	"reflect"
	"strings"
)

// MD5Hex is the lowercase hex md5 digest of s.
func MD5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func MaskSensitiveData(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}

func RedactSecrets(v interface{}) interface{} {
	suspicious := map[string]struct{}{
		"password": {}, "pass": {}, "pwd": {}, "secret": {}, "token": {}, "access_token": {},
		"refresh_token": {}, "apikey": {}, "api_key": {}, "authorization": {}, "auth": {},
		"cookie": {}, "cookies": {}, "a1": {}, "web_session": {}, "webid": {}, "private_key": {},
	}
	return redactRecursive(v, suspicious)
}

func redactRecursive(v interface{}, keys map[string]struct{}) interface{} {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			lk := strings.ToLower(k)
			if _, found := keys[lk]; found {
				out[k] = "[REDACTED]"
				continue
			}
			out[k] = redactRecursive(iter.Value().Interface(), keys)
		}
		return out

	case reflect.Struct:
		out := make(map[string]interface{}, rv.NumField())
		rt := rv.Type()
		for i := 0; i < rv.NumField(); i++ {
			f := rt.Field(i)
			// export only
			if f.PkgPath != "" {
				continue
			}
			name := f.Name
			jsonTag := f.Tag.Get("json")
			if jsonTag != "" && jsonTag != "-" {
				name = strings.Split(jsonTag, ",")[0]
				if name == "" {
					name = f.Name
				}
			}
			lk := strings.ToLower(name)
			if _, found := keys[lk]; found {
				out[name] = "[REDACTED]"
				continue
			}
			out[name] = redactRecursive(rv.Field(i).Interface(), keys)
		}
		return out

	case reflect.Slice, reflect.Array:
		n := rv.Len()
		out := make([]interface{}, n)
		for i := 0; i < n; i++ {
			out[i] = redactRecursive(rv.Index(i).Interface(), keys)
		}
		return out

	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return redactRecursive(rv.Elem().Interface(), keys)

	default:
		return v
	}
}
