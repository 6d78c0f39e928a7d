// Command smoke checks that the dashboard's optional dependencies are
// reachable with the current environment: Redis, the geocoder and Kafka.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/gapminder-dash/internal/cache/keys"
	"github.com/mohammed-shakir/gapminder-dash/internal/cache/redisstore"
	"github.com/mohammed-shakir/gapminder-dash/internal/core/config"
	"github.com/mohammed-shakir/gapminder-dash/internal/core/httpclient"
	"github.com/mohammed-shakir/gapminder-dash/internal/events"
	"github.com/mohammed-shakir/gapminder-dash/internal/geocode"
	h3mapper "github.com/mohammed-shakir/gapminder-dash/internal/mapper/h3"
)

// the Input page's default point
const (
	lat = 39.0
	lon = -79.0
)

func testRedis(ctx context.Context, addr string) error {
	fmt.Println("Redis test")
	c, err := redisstore.New(ctx, addr)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if err := c.Set(ctx, "smoke:hello", []byte("world"), 30*time.Second); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	val, ok, err := c.Get(ctx, "smoke:hello")
	if err != nil {
		return fmt.Errorf("redis get: %w", err)
	}
	if !ok {
		return fmt.Errorf("redis get: key vanished")
	}
	fmt.Println("redis GET smoke:hello:", string(val))
	return c.Del(ctx, "smoke:hello")
}

func testGeocoder(ctx context.Context, cfg config.GeocodeCfg) error {
	fmt.Println("Geocoder test")
	n, err := geocode.NewNominatim(cfg.URL, cfg.UserAgent, cfg.Language, httpclient.NewOutbound(cfg.Timeout))
	if err != nil {
		return err
	}
	country, err := n.Reverse(ctx, lat, lon)
	if err != nil {
		return fmt.Errorf("reverse %v,%v: %w", lat, lon, err)
	}
	fmt.Printf("reverse %v,%v: %s\n", lat, lon, country)
	return nil
}

func testKafka(brokers []string, topic string) error {
	fmt.Println("Kafka test")

	cfg := events.ProducerConfig()
	cfg.Producer.Return.Successes = true
	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return fmt.Errorf("producer create: %w", err)
	}
	defer func() { _ = prod.Close() }()

	msg, _ := json.Marshal(events.Event{ID: "smoke", Type: events.Submit, Country: "Smoke Test", TS: time.Now().UTC()})
	partition, offset, err := prod.SendMessage(&sarama.ProducerMessage{
		Topic: topic, Key: sarama.StringEncoder("smoke"), Value: sarama.ByteEncoder(msg),
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	fmt.Printf("produced one event at partition %d offset %d\n", partition, offset)

	consumer, err := sarama.NewConsumer(brokers, cfg)
	if err != nil {
		return fmt.Errorf("consumer create: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	pc, err := consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return fmt.Errorf("consume partition: %w", err)
	}
	defer func() { _ = pc.Close() }()

	select {
	case m := <-pc.Messages():
		fmt.Println("consumed:", string(m.Value))
	case <-time.After(5 * time.Second):
		fmt.Println("no event consumed (timeout)")
	}
	return nil
}

func demoCacheKey(cfg config.GeocodeCfg) error {
	fmt.Println("Geocode cache key")
	cell, err := h3mapper.New().CellForPoint(lat, lon, cfg.H3Res)
	if err != nil {
		return err
	}
	fmt.Println("key:", keys.Geocode(cfg.URL, cfg.Language, cfg.H3Res, cell))
	return nil
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	cfg := config.FromEnv()
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}

	failed := false
	check := func(name string, err error) {
		if err != nil {
			fmt.Printf("%s error: %v\n", name, err)
			failed = true
		}
	}
	check("Redis", testRedis(ctx, cfg.RedisAddr))
	check("Geocoder", testGeocoder(ctx, cfg.Geocode))
	check("Kafka", testKafka(cfg.Events.BrokerList(), cfg.Events.Topic))
	check("H3", demoCacheKey(cfg.Geocode))
	if failed {
		os.Exit(1)
	}
	fmt.Println("All checks completed")
}
