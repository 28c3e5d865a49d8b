package credentials

import (
	"encoding/json"
	"os"
)

// UserMappingEntry is one entry in user_mapping.json's "user_mappings" map.
type UserMappingEntry struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// UserMappingFile is the decoded shape of user_mapping.json.
type UserMappingFile struct {
	UserMappings map[string]UserMappingEntry `json:"user_mappings"`
}

// LoadUserMappingFile reads user_mapping.json. An absent file is tolerated:
// it returns an empty UserMappingFile and a nil error.
func LoadUserMappingFile(path string) (*UserMappingFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &UserMappingFile{UserMappings: map[string]UserMappingEntry{}}, nil
		}
		return nil, err
	}

	var f UserMappingFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.UserMappings == nil {
		f.UserMappings = map[string]UserMappingEntry{}
	}
	return &f, nil
}
