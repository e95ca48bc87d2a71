package cache

import "fmt"

// Key layout:
// - roomKey(title):   online members of a document (ZSet<userId>, score=expireAtUnix)
// - namesKey(title):  userId -> username map for the document (Hash)
// - cursorKey:        per-user cursor blob, plain TTL key

const (
	keyRoomFmt   = "presence:room:{doc:%s}"       // ZSet<userId, expireAtUnix>
	keyNamesFmt  = "presence:room:names:{doc:%s}" // Hash<userId -> username>
	keyCursorFmt = "presence:cursor:%s:%d"
)

func roomKey(title string) string  { return fmt.Sprintf(keyRoomFmt, title) }
func namesKey(title string) string { return fmt.Sprintf(keyNamesFmt, title) }

func cursorKey(title string, userID uint64) string {
	return fmt.Sprintf(keyCursorFmt, title, userID)
}
