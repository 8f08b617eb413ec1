package main

const defaultConfig = `server:
  port: ":8080"
  mode: "debug"
  read_timeout: 30s
  write_timeout: 30s

database:
  driver: "postgres"
  host: "localhost"
  port: 5432
  user: "bloglite"
  password: "bloglite"
  dbname: "bloglite"
  sslmode: "disable"
  path: "bloglite.db"
  max_open_conns: 50
  max_idle_conns: 10
  log_queries: false

redis:
  host: "localhost"
  port: 6379
  password: ""
  db: 0
  pool_size: 50
  min_idle_conns: 5

kafka:
  enabled: false
  brokers:
    - "localhost:9092"
  topics:
    feed_events: "feed-events"
    digest_emails: "digest-emails"

jwt:
  secret: "change-me-in-production"
  expire_time: 24h

cache:
  backend: "memory"   # memory | redis
  ttl: 10s
  prefix: "bloglite:"

digest:
  page_size: 100
  daily_window: 24h
  monthly_window: 720h

log:
  level: "info"

rate_limit:
  rps: 50
  burst: 100
`
