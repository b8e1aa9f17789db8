package rest

import "net/url"

// actionMap resolves a query-string key into the provider action name it selects. Requests without a matching key
// fall back to the verb-specific default. The resolved name is recorded for observability only, it never alters
// control flow.
var actionMap = map[Method]map[string]string{
	MethodGet: {"uploads": "ListBucketMultipartUploads"},
	MethodPut: {"lifecycle": "PutLifecycleConfiguration"},
}

// defaultActions are the action names used when no query-string key selects one.
var defaultActions = map[Method]string{
	MethodGet:  "ListBucket",
	MethodPut:  "CreateBucket",
	MethodHead: "HeadObject",
}

// resolveAction returns the action name the given method/query-string selects.
func resolveAction(method Method, query url.Values) string {
	for key, action := range actionMap[method] {
		if query.Has(key) {
			return action
		}
	}

	return defaultActions[method]
}
