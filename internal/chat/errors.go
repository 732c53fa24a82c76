package chat

import "fmt"

// ErrIntegrity marks a room referencing a user id that storage no longer
// knows. Data corruption, not a user-facing condition: the request fails
// loudly instead of returning a partial view.
var ErrIntegrity = fmt.Errorf("room references unknown user")
