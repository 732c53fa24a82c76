package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	BaseURL   = "http://localhost:8080"
	WSURL     = "ws://localhost:8080/ws"
	PairCount = 50 // ⚠️ Start small (50 pairs = 100 users). Database might choke on 1000 immediately.
	MsgCount  = 20 // Messages per user
)

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func main() {
	log.Printf("🔥 STARTING STRESS TEST: %d Users, %d Messages each...", PairCount*2, MsgCount)
	var wg sync.WaitGroup

	// We create pairs: User 0 talks to User 1, User 2 talks to User 3...
	for i := 0; i < PairCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(pairID)
		}(i)
	}

	wg.Wait()
	log.Println("✅ LOAD TEST COMPLETE")
}

func runPair(pairID int) {
	// 1. Register both users
	userA := createUser(fmt.Sprintf("u_%d_a", pairID), fmt.Sprintf("+1555%06da", pairID))
	userB := createUser(fmt.Sprintf("u_%d_b", pairID), fmt.Sprintf("+1555%06db", pairID))
	if userA == nil || userB == nil {
		return
	}

	// 2. Provision pairwise rooms for user A (covers the A/B pair too)
	resp, err := http.Get(fmt.Sprintf("%s/rooms/prepare/%s", BaseURL, userA.ID))
	if err != nil {
		log.Printf("❌ Prepare Rooms Failed [%s]: %v", userA.Username, err)
		return
	}
	resp.Body.Close()

	// 3. Both sides join the same websocket room and spam it
	room := fmt.Sprintf("pair-%d", pairID)
	var wsWg sync.WaitGroup
	wsWg.Add(2)

	go spamChat(&wsWg, room, userA.Username)
	go spamChat(&wsWg, room, userB.Username)

	wsWg.Wait()
}

func createUser(username, phone string) *userResponse {
	body, _ := json.Marshal(map[string]string{"username": username, "phone": phone})
	resp, err := http.Post(BaseURL+"/users/create", "application/json", bytes.NewBuffer(body))
	if err != nil || resp.StatusCode != http.StatusOK {
		log.Printf("❌ Create User Failed [%s]: %v", username, err)
		return nil
	}
	defer resp.Body.Close()

	var u userResponse
	json.NewDecoder(resp.Body).Decode(&u)
	return &u
}

func spamChat(wg *sync.WaitGroup, room, username string) {
	defer wg.Done()

	conn, _, err := websocket.DefaultDialer.Dial(WSURL, nil)
	if err != nil {
		log.Printf("❌ WS Connect Fail [%s]: %v", username, err)
		return
	}
	defer conn.Close()

	// Drain server pushes so the send buffer never fills up
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	conn.WriteMessage(websocket.TextMessage, []byte("/name "+username))
	conn.WriteMessage(websocket.TextMessage, []byte("/join "+room))

	// Spam Loop
	for i := 0; i < MsgCount; i++ {
		msg := fmt.Sprintf("LoadTest Msg %d from %s", i, username)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			log.Printf("❌ Send Fail [%s]: %v", username, err)
			break
		}
		// Small sleep to prevent instant localhost bottleneck (simulate real network)
		time.Sleep(10 * time.Millisecond)
	}
	log.Printf("✅ %s finished sending %d msgs", username, MsgCount)
}
