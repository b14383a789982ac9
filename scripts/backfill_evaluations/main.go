// Command backfill_evaluations upgrades legacy class records in the
// record store. Records completed before the structured evaluation
// schema existed carry only the encoded notes summary; this tool decodes
// the summary and writes the structured record back in place so the
// analytics aggregator no longer needs the legacy fallback for them.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noor-academy/tutoring-api/internal/evaluation"
	"github.com/noor-academy/tutoring-api/internal/models"
	"github.com/noor-academy/tutoring-api/internal/recordstore"
)

// The analytics decoder only recovers performance, tajweed and
// attendance. A backfilled structured record must carry every field, so
// the remaining ones are pulled from the same summary grammar here.
var (
	memorizationRe  = regexp.MustCompile(`(?i)Memorization=(\d)/5`)
	participationRe = regexp.MustCompile(`(?i)Participation=(\d)/5`)
	homeworkRe      = regexp.MustCompile(`(?i)Homework=([a-z-]+)\.`)
	legacyNotesRe   = regexp.MustCompile(`Notes: (.*)$`)
)

func scoreFrom(re *regexp.Regexp, notes string) (int, bool) {
	m := re.FindStringSubmatch(notes)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func main() {
	var (
		redisAddr     string
		redisPassword string
		redisDB       int
		prefix        string
		teacherID     string
		dryRun        bool
		timeout       time.Duration
	)

	flag.StringVar(&redisAddr, "redis-addr", "localhost:6379", "Redis address")
	flag.StringVar(&redisPassword, "redis-password", "", "Redis password")
	flag.IntVar(&redisDB, "redis-db", 0, "Redis database")
	flag.StringVar(&prefix, "prefix", "classes", "Record store key prefix")
	flag.StringVar(&teacherID, "teacher", "", "Limit the backfill to one teacher ID")
	flag.BoolVar(&dryRun, "dry-run", false, "Report without writing")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Overall run timeout")
	flag.Parse()

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis unreachable: %v", err)
	}

	store := recordstore.NewRedis(client, prefix, 0, nil)

	collection := "teachers"
	if teacherID != "" {
		collection = fmt.Sprintf("teachers/%s/%s", teacherID, prefix)
	}

	values, err := store.List(ctx, collection)
	if err != nil {
		log.Fatalf("list records: %v", err)
	}

	var upgraded, skipped, failed int
	for key, raw := range values {
		var session models.Session
		if err := json.Unmarshal(raw, &session); err != nil {
			log.Printf("skip %s: undecodable record: %v", key, err)
			failed++
			continue
		}
		if !session.Completed() || session.Evaluation != nil {
			skipped++
			continue
		}

		decoded, err := evaluation.Decode(session.Notes)
		if err != nil {
			log.Printf("skip %s: %v", key, err)
			failed++
			continue
		}

		memorization, okMem := scoreFrom(memorizationRe, session.Notes)
		participation, okPart := scoreFrom(participationRe, session.Notes)
		hwMatch := homeworkRe.FindStringSubmatch(session.Notes)
		if !okMem || !okPart || hwMatch == nil {
			log.Printf("skip %s: summary lacks fields needed for a full record", key)
			failed++
			continue
		}
		homework := models.HomeworkStatus(strings.ToLower(hwMatch[1]))
		if !homework.Valid() {
			log.Printf("skip %s: unknown homework status %q", key, hwMatch[1])
			failed++
			continue
		}

		var freeNotes string
		if m := legacyNotesRe.FindStringSubmatch(session.Notes); m != nil {
			freeNotes = m[1]
		}

		session.Evaluation = &models.EvaluationRecord{
			SchemaVersion: models.EvaluationRecordSchemaVersion,
			Evaluation: models.Evaluation{
				Attendance:    decoded.AttendanceStatus,
				Homework:      homework,
				Performance:   decoded.Performance,
				Memorization:  memorization,
				Tajweed:       decoded.Tajweed,
				Participation: participation,
				Notes:         freeNotes,
			},
		}

		if dryRun {
			log.Printf("would upgrade %s (performance=%d)", key, decoded.Performance)
			upgraded++
			continue
		}

		payload, err := json.Marshal(&session)
		if err != nil {
			log.Printf("skip %s: encode: %v", key, err)
			failed++
			continue
		}
		if err := store.Set(ctx, key, payload); err != nil {
			log.Printf("write %s failed: %v", key, err)
			failed++
			continue
		}
		upgraded++
	}

	fmt.Printf("Upgraded: %d, Skipped: %d, Failed: %d\n", upgraded, skipped, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
