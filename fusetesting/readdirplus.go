// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fusetesting

import (
	"os"
	"sort"
)

// Read the directory with the given name and return the names of its entries
// sorted by name. Unlike os.ReadDir, no attributes are fetched, so the server
// sees only OPENDIR, READDIR and RELEASEDIR requests.
func ReadDirNamesPicky(dirname string) (names []string, err error) {
	f, err := os.Open(dirname)
	if err != nil {
		return nil, err
	}

	names, err = f.Readdirnames(-1)
	closeErr := f.Close()
	if err != nil {
		return nil, err
	}

	if closeErr != nil {
		return nil, closeErr
	}

	sort.Strings(names)
	return names, nil
}
